package app

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/five82/hordedream/internal/horde"
)

const (
	defaultPollInterval  = 800 * time.Millisecond
	defaultRetryInterval = time.Second
	defaultMaxAttempts   = 10
)

// poll checks the job until the Horde reports it done. It returns nil once
// done, the context error when cancelled, and the check error when a check
// fails permanently or the network retries are exhausted.
func (g *Generator) poll(ctx context.Context, id string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		check, err := g.check(ctx, id)
		if err != nil {
			return err
		}
		g.log.Debugw("job progress",
			"id", id,
			"done", check.Done,
			"finished", check.Finished,
			"processing", check.Processing,
			"waiting", check.Waiting,
			"queue_position", check.QueuePosition,
			"wait_time", check.WaitTime,
		)
		if check.Done {
			return nil
		}
		if err := g.sleep(ctx, g.pollInterval); err != nil {
			return err
		}
	}
}

// check performs one status check. Connection failures are retried at a
// fixed interval; the last of maxAttempts consecutive failures is returned.
// Any other error ends the check immediately.
func (g *Generator) check(ctx context.Context, id string) (*horde.CheckResponse, error) {
	var (
		result  *horde.CheckResponse
		attempt int
	)
	operation := func() error {
		attempt++
		resp, err := g.client.Check(ctx, id)
		if err != nil {
			g.store.Update(nil, err)
			var netErr *horde.NetworkError
			if errors.As(err, &netErr) {
				g.log.Errorf("Error %v when retrieving status. Retry %d/%d", err, attempt, g.maxAttempts)
				return err
			}
			return backoff.Permanent(err)
		}
		result = resp
		return nil
	}

	retries := uint64(0)
	if g.maxAttempts > 1 {
		retries = uint64(g.maxAttempts - 1)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryInterval), retries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var httpErr *horde.HTTPError
		if errors.As(err, &httpErr) {
			g.log.Errorw("status check rejected", "url", httpErr.URL, "status", httpErr.StatusCode, "body", httpErr.Body)
		}
		return nil, err
	}
	g.store.Update(result, nil)
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
