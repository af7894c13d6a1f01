package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/five82/hordedream/internal/horde"
)

type checkReply struct {
	resp *horde.CheckResponse
	err  error
}

// fakeHorde is an in-memory horde.JobAPI.
type fakeHorde struct {
	mu sync.Mutex

	submitResult horde.SubmitResult
	submitErr    error

	checks []checkReply

	status    *horde.StatusResponse
	statusErr error

	cancelled    *horde.StatusResponse
	cancelErr    error
	cancelCtxErr error

	images   map[string][]byte
	imageErr map[string]error

	calls []string

	// onCall runs after a call is recorded, before it is answered.
	onCall func(call string)
}

var _ horde.JobAPI = (*fakeHorde)(nil)

func (f *fakeHorde) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
}

func (f *fakeHorde) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeHorde) Submit(_ context.Context, _ horde.GenerationRequest) (horde.SubmitResult, error) {
	f.record("submit")
	return f.submitResult, f.submitErr
}

func (f *fakeHorde) Check(ctx context.Context, _ string) (*horde.CheckResponse, error) {
	n := f.count("check")
	f.record("check")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.checks) == 0 {
		return &horde.CheckResponse{Done: true}, nil
	}
	if n >= len(f.checks) {
		n = len(f.checks) - 1
	}
	reply := f.checks[n]
	return reply.resp, reply.err
}

func (f *fakeHorde) Status(ctx context.Context, _ string) (*horde.StatusResponse, error) {
	f.record("status")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.status, f.statusErr
}

func (f *fakeHorde) Cancel(ctx context.Context, _ string) (*horde.StatusResponse, error) {
	f.record("cancel")
	f.cancelCtxErr = ctx.Err()
	return f.cancelled, f.cancelErr
}

func (f *fakeHorde) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	f.record("fetch")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.imageErr[rawURL]; err != nil {
		return nil, err
	}
	data, ok := f.images[rawURL]
	if !ok {
		return nil, &horde.HTTPError{Method: "GET", URL: rawURL, StatusCode: 404, Body: "not found"}
	}
	return data, nil
}

func jobAccepted(id string) horde.SubmitResult {
	return horde.NewJob(horde.JobHandle{ID: id, Kudos: 10})
}

func pending() checkReply {
	return checkReply{resp: &horde.CheckResponse{Waiting: 1, QueuePosition: 3, IsPossible: true}}
}

func done() checkReply {
	return checkReply{resp: &horde.CheckResponse{Done: true, Finished: 1, IsPossible: true}}
}

func offline() checkReply {
	return checkReply{err: &horde.NetworkError{Method: "GET", URL: "https://horde.test/api/v2/generate/check/abc", Err: errors.New("connection refused")}}
}

// timedOut is a connection failure caused by the HTTP client's own timeout.
func timedOut() checkReply {
	return checkReply{err: &horde.NetworkError{
		Method: "GET",
		URL:    "https://horde.test/api/v2/generate/check/abc",
		Err:    fmt.Errorf("net/http: request canceled (Client.Timeout exceeded while awaiting headers): %w", context.DeadlineExceeded),
	}}
}

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

// newTestGenerator returns a generator that never sleeps for real and records
// every poll wait.
func newTestGenerator(client horde.JobAPI, log *zap.SugaredLogger, opts ...GeneratorOption) (*Generator, *[]time.Duration) {
	opts = append([]GeneratorOption{WithRetry(0, defaultMaxAttempts)}, opts...)
	g := NewGenerator(client, log, opts...)
	var waits []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return g, &waits
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngBase64(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(pngBytes(t))
}
