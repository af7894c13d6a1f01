package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/hordedream/internal/horde"
	"github.com/five82/hordedream/internal/state"
)

func baseRequest(r2 bool) horde.GenerationRequest {
	return horde.GenerationRequest{
		Prompt: "a horde of cute stable robots",
		Params: horde.GenerationParams{N: 1, Width: 512, Height: 512, Steps: 20},
		Models: []string{"stable_diffusion"},
		R2:     r2,
	}
}

func TestGenerateDryRunReturnsEstimateWithoutPolling(t *testing.T) {
	client := &fakeHorde{submitResult: horde.NewEstimate(12.5)}
	g, _ := newTestGenerator(client, nil)

	out, err := g.Generate(context.Background(), baseRequest(true), filepath.Join(t.TempDir(), "x.png"))
	require.NoError(t, err)
	require.NotNil(t, out.Estimate)
	assert.Equal(t, 12.5, *out.Estimate)
	assert.Equal(t, []string{"submit"}, client.calls)
}

func TestGenerateSubmitHTTPError(t *testing.T) {
	client := &fakeHorde{submitErr: &horde.HTTPError{Method: "POST", URL: "https://horde.test/api/v2/generate/async", StatusCode: 401, Body: "invalid api key"}}
	log, logs := observedLogger()
	g, _ := newTestGenerator(client, log)

	_, err := g.Generate(context.Background(), baseRequest(true), "x.png")
	var httpErr *horde.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 401, httpErr.StatusCode)
	assert.Equal(t, 0, client.count("check"))
	require.Equal(t, 1, logs.FilterMessage("submit rejected").Len())
	assert.Equal(t, "invalid api key", logs.FilterMessage("submit rejected").All()[0].ContextMap()["body"])
}

func TestGenerateInlineSingleImage(t *testing.T) {
	dir := t.TempDir()
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		checks:       []checkReply{pending(), done()},
		status: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Done: true, Finished: 1},
			Generations:   []horde.Generation{{ID: "g0", Img: pngBase64(t)}},
		},
	}
	store := &state.Store{}
	log, logs := observedLogger()
	g, _ := newTestGenerator(client, log, WithStore(store))

	path := filepath.Join(dir, "dream.png")
	out, err := g.Generate(context.Background(), baseRequest(false), path)
	require.NoError(t, err)

	assert.Equal(t, "abc", out.JobID)
	require.Len(t, out.Saved, 1)
	assert.Equal(t, path, out.Saved[0].Path)
	assert.FileExists(t, path)
	assert.Equal(t, 1, logs.FilterMessage("Saved "+path).Len())
	assert.Equal(t, state.PhaseFinished, store.Snapshot().Phase)
}

func TestGenerateR2MultipleImagesArePrefixed(t *testing.T) {
	dir := t.TempDir()
	img := pngBytes(t)
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		status: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Done: true, Finished: 3},
			Generations: []horde.Generation{
				{ID: "g0", Img: "https://r2.test/g0.webp"},
				{ID: "g1", Img: "https://r2.test/g1.webp"},
				{ID: "g2", Img: "https://r2.test/g2.webp"},
			},
		},
		images: map[string][]byte{
			"https://r2.test/g0.webp": img,
			"https://r2.test/g1.webp": img,
			"https://r2.test/g2.webp": img,
		},
	}
	g, _ := newTestGenerator(client, nil)

	out, err := g.Generate(context.Background(), baseRequest(true), filepath.Join(dir, "out.png"))
	require.NoError(t, err)
	require.Len(t, out.Saved, 3)
	for i, name := range []string{"0_out.png", "1_out.png", "2_out.png"} {
		assert.Equal(t, filepath.Join(dir, name), out.Saved[i].Path)
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, img, data)
	}
	assert.Equal(t, 3, client.count("fetch"))
}

func TestGenerateSkipsFailedDownload(t *testing.T) {
	dir := t.TempDir()
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		status: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Done: true, Finished: 2},
			Generations: []horde.Generation{
				{ID: "g0", Img: "https://r2.test/g0.webp"},
				{ID: "g1", Img: "https://r2.test/missing.webp"},
			},
		},
		images: map[string][]byte{"https://r2.test/g0.webp": pngBytes(t)},
	}
	g, _ := newTestGenerator(client, nil)

	out, err := g.Generate(context.Background(), baseRequest(true), filepath.Join(dir, "out.png"))
	require.NoError(t, err)
	require.Len(t, out.Saved, 1)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, 1, out.Skipped[0].Index)
	assert.Equal(t, "g1", out.Skipped[0].GenerationID)

	var httpErr *horde.HTTPError
	assert.True(t, errors.As(out.Skipped[0], &httpErr))
	assert.NoFileExists(t, filepath.Join(dir, "1_out.png"))
}

func TestGenerateInlineUndecodableImageIsSkipped(t *testing.T) {
	dir := t.TempDir()
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		status: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Done: true, Finished: 2},
			Generations: []horde.Generation{
				{ID: "g0", Img: "!!not base64!!"},
				{ID: "g1", Img: pngBase64(t)},
			},
		},
	}
	g, _ := newTestGenerator(client, nil)

	out, err := g.Generate(context.Background(), baseRequest(false), filepath.Join(dir, "out.png"))
	require.NoError(t, err)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, 0, out.Skipped[0].Index)
	require.Len(t, out.Saved, 1)
	assert.FileExists(t, filepath.Join(dir, "1_out.png"))
}

func TestGenerateCensoredAnnotation(t *testing.T) {
	dir := t.TempDir()
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		status: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Done: true, Finished: 1},
			Generations:   []horde.Generation{{ID: "g0", Img: pngBase64(t), Censored: true}},
		},
	}
	log, logs := observedLogger()
	g, _ := newTestGenerator(client, log)

	path := filepath.Join(dir, "out.png")
	out, err := g.Generate(context.Background(), baseRequest(false), path)
	require.NoError(t, err)
	assert.True(t, out.Saved[0].Censored)
	assert.Equal(t, 1, logs.FilterMessage("Saved (censored) "+path).Len())
}

func TestGenerateFaultedJobWritesNothing(t *testing.T) {
	dir := t.TempDir()
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		status: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Done: true, Faulted: true},
			Generations:   []horde.Generation{{ID: "g0", Img: pngBase64(t)}},
		},
	}
	log, logs := observedLogger()
	g, _ := newTestGenerator(client, log)

	req := baseRequest(false)
	req.SourceImage = strings.Repeat("QUJD", 500)

	_, err := g.Generate(context.Background(), req, filepath.Join(dir, "out.png"))
	var faulted *FaultedJobError
	require.True(t, errors.As(err, &faulted))
	assert.Equal(t, "abc", faulted.JobID)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)

	lines := logs.FilterMessageSnippet("Something went wrong").All()
	require.Len(t, lines, 1)
	msg := lines[0].Message
	assert.Contains(t, msg, req.Prompt)
	assert.Contains(t, msg, "img2img request with size: 2000")
	assert.NotContains(t, msg, req.SourceImage)
}

func TestGenerateCancelDeletesJobAndSavesFinished(t *testing.T) {
	dir := t.TempDir()
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		checks:       []checkReply{pending()},
		cancelled: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Finished: 1, Waiting: 1},
			Generations:   []horde.Generation{{ID: "g0", Img: pngBase64(t)}},
		},
	}
	g, _ := newTestGenerator(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	path := filepath.Join(dir, "out.png")
	out, err := g.Generate(ctx, baseRequest(false), path)
	require.NoError(t, err)

	assert.True(t, out.Cancelled)
	assert.Equal(t, 1, client.count("cancel"))
	assert.Equal(t, 0, client.count("status"))
	assert.NoError(t, client.cancelCtxErr, "cancel must run on a live context")
	require.Len(t, out.Saved, 1)
	assert.FileExists(t, path)
}

func TestGenerateClientTimeoutsFailWithoutDeletingJob(t *testing.T) {
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		checks:       []checkReply{timedOut()},
	}
	g, _ := newTestGenerator(client, nil)

	out, err := g.Generate(context.Background(), baseRequest(true), filepath.Join(t.TempDir(), "out.png"))

	var netErr *horde.NetworkError
	require.True(t, errors.As(err, &netErr), "Generate() error = %v, want *horde.NetworkError", err)
	assert.False(t, out.Cancelled)
	assert.Equal(t, 10, client.count("check"))
	assert.Equal(t, 0, client.count("cancel"))
	assert.Equal(t, 0, client.count("status"))
}

func TestGenerateCancelAfterDoneStillRetrieves(t *testing.T) {
	dir := t.TempDir()
	img := pngBytes(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		status: &horde.StatusResponse{
			CheckResponse: horde.CheckResponse{Done: true, Finished: 2},
			Generations: []horde.Generation{
				{ID: "g0", Img: "https://r2.test/g0.webp"},
				{ID: "g1", Img: "https://r2.test/g1.webp"},
			},
		},
		images: map[string][]byte{
			"https://r2.test/g0.webp": img,
			"https://r2.test/g1.webp": img,
		},
		onCall: func(call string) {
			if call == "status" {
				cancel()
			}
		},
	}
	g, _ := newTestGenerator(client, nil)

	out, err := g.Generate(ctx, baseRequest(true), filepath.Join(dir, "out.png"))
	require.NoError(t, err)

	assert.False(t, out.Cancelled)
	assert.Empty(t, out.Skipped)
	require.Len(t, out.Saved, 2)
	assert.FileExists(t, filepath.Join(dir, "0_out.png"))
	assert.FileExists(t, filepath.Join(dir, "1_out.png"))
	assert.Equal(t, 0, client.count("cancel"))
}

func TestGenerateCancelFailure(t *testing.T) {
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		checks:       []checkReply{pending()},
		cancelErr:    &horde.HTTPError{Method: "DELETE", StatusCode: 500, Body: "oops"},
	}
	g, _ := newTestGenerator(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	out, err := g.Generate(ctx, baseRequest(false), filepath.Join(t.TempDir(), "out.png"))
	require.Error(t, err)
	assert.True(t, out.Cancelled)
	var httpErr *horde.HTTPError
	assert.True(t, errors.As(err, &httpErr))
}

func TestGenerateStatusError(t *testing.T) {
	client := &fakeHorde{
		submitResult: jobAccepted("abc"),
		statusErr:    &horde.HTTPError{Method: "GET", StatusCode: 404, Body: "gone"},
	}
	g, _ := newTestGenerator(client, nil)

	_, err := g.Generate(context.Background(), baseRequest(true), "out.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve job abc")
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		base  string
		index int
		total int
		want  string
	}{
		{"dream.png", 0, 1, "dream.png"},
		{"dream.png", 0, 2, "0_dream.png"},
		{"dream.png", 1, 2, "1_dream.png"},
		{filepath.Join("out", "dream.png"), 2, 3, filepath.Join("out", "2_dream.png")},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.base, tt.index, tt.total); got != tt.want {
			t.Fatalf("OutputPath(%q, %d, %d) = %q, want %q", tt.base, tt.index, tt.total, got, tt.want)
		}
	}
}
