// Package app provides the orchestration layer for hordedream.
//
// # Overview
//
// This package wires together configuration, the request builder, the Horde
// client and the optional progress view. Run is the composition root; the
// Generator type owns the submit, poll and retrieve sequence for one request.
//
// # Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> prefs.Load()        Theme and progress view preference
//	       ├─────> config.Load()       Persisted request data (YAML or TOML)
//	       ├─────> request.Resolve()   defaults < config < flags
//	       ├─────> request.Build()     Encode source image and mask
//	       ├─────> horde.NewClient()   HTTP client
//	       └─────> Generator.Generate() or matrix.Run()
//
//	Generator.Generate():
//	┌─────────────────────────────────────────┐
//	│ Submit                                  │
//	│  ├─> Estimate: return (dry run)         │
//	│  └─> Job: poll()                        │
//	│        ├─> done: Status()               │
//	│        ├─> ctx cancelled: Cancel()      │
//	│        └─> error: return                │
//	│ retrieve(): save each generation        │
//	└─────────────────────────────────────────┘
//
// # Polling Behavior
//
// Each iteration issues one check request. A job that is not done waits the
// poll interval (default 800ms) before the next check; a done job moves
// straight to retrieval. Connection-level failures (*horde.NetworkError) are
// retried 1s apart, and the tenth consecutive failure ends the flow. Any
// HTTP error response ends it at once. Every observation is published to the
// state.Store so the progress view can render it.
//
// # Cancellation
//
// Cancellation is read from the caller's context, not from the error a check
// returned: a check that keeps timing out is a failure and leaves the job on
// the Horde. Once the context is done while the job is pending, the job is
// deleted with a 30s deadline and the generations the delete response
// carries are saved like a normal result. Deletion, the final status fetch
// and image downloads all run on a detached context, so an interrupt that
// arrives after the job is done still saves its images.
//
// # Output Files
//
// A single generation is written to the configured filename. Several are
// written as 0_name, 1_name and so on in the same directory. A generation that
// cannot be downloaded or decoded is logged and skipped; the rest are still
// saved.
package app
