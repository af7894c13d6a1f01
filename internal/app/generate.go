package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/five82/hordedream/internal/horde"
	"github.com/five82/hordedream/internal/logging"
	"github.com/five82/hordedream/internal/state"
)

const (
	defaultCancelTimeout   = 30 * time.Second
	defaultRetrieveTimeout = 5 * time.Minute
)

// Outcome summarizes one generation flow.
type Outcome struct {
	// Estimate is set when the submission was a dry run.
	Estimate  *float64
	JobID     string
	Cancelled bool
	Saved     []SavedImage
	Skipped   []PartialDownloadError
}

// SavedImage is one image written to disk.
type SavedImage struct {
	Path         string
	GenerationID string
	Censored     bool
}

// Generator runs the submit, poll and retrieve sequence for one request.
type Generator struct {
	client horde.JobAPI
	log    *zap.SugaredLogger
	store  *state.Store

	pollInterval    time.Duration
	retryInterval   time.Duration
	maxAttempts     int
	cancelTimeout   time.Duration
	retrieveTimeout time.Duration
	sleep           func(context.Context, time.Duration) error
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithStore publishes poll progress to store.
func WithStore(store *state.Store) GeneratorOption {
	return func(g *Generator) { g.store = store }
}

// WithPollInterval overrides the wait between status checks.
func WithPollInterval(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.pollInterval = d }
}

// WithRetry overrides the connection retry interval and attempt bound.
func WithRetry(interval time.Duration, maxAttempts int) GeneratorOption {
	return func(g *Generator) {
		g.retryInterval = interval
		g.maxAttempts = maxAttempts
	}
}

// NewGenerator builds a Generator with the stock timings: 0.8s between
// checks and up to 10 connection attempts 1s apart.
func NewGenerator(client horde.JobAPI, log *zap.SugaredLogger, opts ...GeneratorOption) *Generator {
	if log == nil {
		log = logging.Nop()
	}
	g := &Generator{
		client:          client,
		log:             log,
		pollInterval:    defaultPollInterval,
		retryInterval:   defaultRetryInterval,
		maxAttempts:     defaultMaxAttempts,
		cancelTimeout:   defaultCancelTimeout,
		retrieveTimeout: defaultRetrieveTimeout,
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate submits req and, unless it is a dry run, waits for the job and
// saves its images under filename. Cancelling ctx while the job is queued
// deletes the job on the Horde and saves whatever it already finished; a
// cancel after the job is done still retrieves it. A failed poll, including
// exhausted connection retries, never deletes the job.
func (g *Generator) Generate(ctx context.Context, req horde.GenerationRequest, filename string) (Outcome, error) {
	g.store.SetPhase(state.PhaseSubmitting)
	res, err := g.client.Submit(ctx, req)
	if err != nil {
		g.logRequestError("submit", err)
		return Outcome{}, fmt.Errorf("submit request: %w", err)
	}
	if kudos, ok := res.Estimate(); ok {
		g.log.Infof("Dry run: request would cost %.2f kudos", kudos)
		return Outcome{Estimate: &kudos}, nil
	}

	job, _ := res.Job()
	out := Outcome{JobID: job.ID}
	g.log.Debugw("request accepted", "id", job.ID, "kudos", job.Kudos, "message", job.Message)
	for _, w := range job.Warnings {
		g.log.Warnw("horde warning", "code", w.Code, "message", w.Message)
	}
	g.store.Begin(job.ID, req.Params.N)

	pollErr := g.poll(ctx, job.ID)
	cancelled := ctx.Err() != nil
	if pollErr != nil && !cancelled {
		return out, fmt.Errorf("poll job %s: %w", job.ID, pollErr)
	}

	// Cancellation and retrieval run detached from ctx, bounded by retrieveTimeout.
	rctx, release := context.WithTimeout(context.WithoutCancel(ctx), g.retrieveTimeout)
	defer release()

	var status *horde.StatusResponse
	if pollErr != nil {
		out.Cancelled = true
		status, err = g.cancel(rctx, job.ID)
		if err != nil {
			g.logRequestError("cancel", err)
			return out, fmt.Errorf("cancel job %s: %w", job.ID, err)
		}
	} else {
		g.store.SetPhase(state.PhaseRetrieving)
		status, err = g.client.Status(rctx, job.ID)
		if err != nil {
			g.logRequestError("status", err)
			return out, fmt.Errorf("retrieve job %s: %w", job.ID, err)
		}
	}

	saved, skipped, err := g.retrieve(rctx, req, job.ID, status, filename)
	out.Saved = saved
	out.Skipped = skipped
	g.store.SetPhase(state.PhaseFinished)
	return out, err
}

func (g *Generator) cancel(ctx context.Context, id string) (*horde.StatusResponse, error) {
	g.log.Infof("Cancelling %s...", id)
	g.store.SetPhase(state.PhaseCancelling)
	ctx, cancel := context.WithTimeout(ctx, g.cancelTimeout)
	defer cancel()
	return g.client.Cancel(ctx, id)
}

func (g *Generator) logRequestError(op string, err error) {
	var httpErr *horde.HTTPError
	if errors.As(err, &httpErr) {
		g.log.Errorw(op+" rejected", "url", httpErr.URL, "status", httpErr.StatusCode, "body", httpErr.Body)
		return
	}
	g.log.Errorw(op+" failed", "error", err)
}
