// Package horde provides an HTTP client for the AI Horde image generation API.
//
// # Overview
//
// The client covers the four endpoints a single asynchronous generation needs,
// plus a plain GET used to download images hosted by the R2 transfer mode:
//
//   - POST /api/v2/generate/async: submit a request (or price it with dry_run)
//   - GET /api/v2/generate/check/{id}: lightweight progress view
//   - GET /api/v2/generate/status/{id}: full status with generations
//   - DELETE /api/v2/generate/status/{id}: cancel and collect partial results
//
// # Submission Results
//
// Submit returns a SubmitResult which is one of two variants. A response that
// carries an id is a queued job:
//
//	res, err := client.Submit(ctx, req)
//	if err != nil {
//		return err
//	}
//	if kudos, ok := res.Estimate(); ok {
//		fmt.Printf("dry run would cost %.2f kudos\n", kudos)
//		return nil
//	}
//	job, _ := res.Job()
//
// # Error Handling
//
// Transport failures are returned as *NetworkError and are safe to retry.
// Non-2xx responses are returned as *HTTPError with the response body attached
// and should not be retried. A cancelled context is returned wrapped as-is so
// callers can test it with errors.Is(err, context.Canceled).
package horde
