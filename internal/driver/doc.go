// Package driver walks the work unit schedule and pushes every unit to
// completion.
//
// The driver is deliberately sequential: exactly one worker invocation is in
// flight at any time, and a unit that fails is retried in place after a fixed
// delay until it succeeds. No unit is skipped and no unit is started before
// its predecessor has succeeded, so a run that returns without error has
// ingested the full schedule.
package driver
