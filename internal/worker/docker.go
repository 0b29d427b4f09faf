package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/seastate/bsose-sync/internal/config"
	"github.com/seastate/bsose-sync/internal/schedule"
)

// containerClient is the subset of the Docker API the runner uses.
type containerClient interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DockerRunner invokes the worker as a container per work unit.
type DockerRunner struct {
	cli     containerClient
	builder *InvocationBuilder
	image   string
	mount   string
	pull    bool

	pullOnce sync.Once
	pullErr  error
}

// NewDockerRunner creates a Runner that executes the worker image through the
// Docker Engine API. Client settings come from the standard DOCKER_* host
// environment.
func NewDockerRunner(cfg *config.WorkerConfig, builder *InvocationBuilder) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return newDockerRunner(cli, cfg, builder), nil
}

func newDockerRunner(cli containerClient, cfg *config.WorkerConfig, builder *InvocationBuilder) *DockerRunner {
	return &DockerRunner{
		cli:     cli,
		builder: builder,
		image:   cfg.Image,
		mount:   cfg.DatasetMount,
		pull:    cfg.Pull,
	}
}

// Run creates, starts and waits for one worker container. The container is
// removed afterwards regardless of outcome.
func (r *DockerRunner) Run(ctx context.Context, unit schedule.WorkUnit) error {
	if err := r.ensureImage(ctx); err != nil {
		return err
	}

	inv := r.builder.Build(unit)

	containerCfg := &container.Config{
		Image: r.image,
		Cmd:   inv.Args,
		Env:   inv.Env,
	}

	hostCfg := &container.HostConfig{}
	if r.mount != "" {
		// The dataset directory must be visible inside the container at the
		// same path the invocation arguments reference.
		hostCfg.Binds = []string{fmt.Sprintf("%s:%s:ro", r.mount, r.mount)}
	}

	name := containerName(unit)
	resp, err := r.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return fmt.Errorf("failed to create worker container: %w", err)
	}

	defer func() {
		if rmErr := r.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID,
			container.RemoveOptions{Force: true}); rmErr != nil {
			slog.Warn("Failed to remove worker container",
				"container", name,
				"error", rmErr,
			)
		}
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start worker container: %w", err)
	}

	slog.Debug("Worker container started",
		"container", name,
		"unit", unit.ID(),
	)

	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed waiting for worker container: %w", err)
	case status := <-statusCh:
		if status.Error != nil {
			return fmt.Errorf("worker container error: %s", status.Error.Message)
		}
		if status.StatusCode != 0 {
			return fmt.Errorf("worker exited with status %d", status.StatusCode)
		}
		return nil
	}
}

// ensureImage pulls the worker image once per process when pulling is
// requested.
func (r *DockerRunner) ensureImage(ctx context.Context) error {
	if !r.pull {
		return nil
	}

	r.pullOnce.Do(func() {
		slog.Info("Pulling worker image", "image", r.image)

		rc, err := r.cli.ImagePull(ctx, r.image, image.PullOptions{})
		if err != nil {
			r.pullErr = fmt.Errorf("failed to pull worker image %s: %w", r.image, err)
			return
		}
		defer rc.Close()

		// The pull only completes once the progress stream is drained.
		if _, err := io.Copy(io.Discard, rc); err != nil {
			r.pullErr = fmt.Errorf("failed to pull worker image %s: %w", r.image, err)
		}
	})

	return r.pullErr
}

// containerName derives a unique, API-safe container name for a unit.
func containerName(unit schedule.WorkUnit) string {
	id := strings.NewReplacer("/", "-", ":", "-").Replace(unit.ID())
	return fmt.Sprintf("bsose-sync-%s-%s", id, uuid.NewString()[:8])
}
