// Package loop runs periodic tasks at a fixed cadence.
//
// A Task receives OnStart once when the scheduler starts, OnLoop once per
// period in registration order, and OnStop once after the loop has halted.
// Timestamps are seconds since the Unix epoch.
//
// Group dispatches a task list synchronously and is shared by the real-time
// Looper and the deterministic simulator, which supplies its own timestamps.
package loop
