// Package ui renders the optional live progress view shown while a Horde job
// runs.
//
// The view is a Bubble Tea program that never drives the generation flow
// itself. The flow runs on its own goroutine and publishes progress through a
// state.Store; the view polls the store on a short tick and renders:
//
//   - the current phase (submitting, polling, cancelling, retrieving)
//   - a progress bar of finished images against the requested count
//   - queue position and estimated wait while the job is pending
//   - a reconnecting hint once consecutive status checks fail
//
// Pressing ctrl+c, q or esc cancels the flow's context exactly once; the flow
// then asks the Horde to cancel the job and saves whatever finished. Pressing
// t cycles the colour theme and persists the choice in the prefs file.
//
// The program is started without its own signal handler so that SIGINT keeps
// reaching the caller's signal.NotifyContext.
package ui
