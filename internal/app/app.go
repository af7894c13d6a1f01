package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/five82/hordedream/internal/config"
	"github.com/five82/hordedream/internal/horde"
	"github.com/five82/hordedream/internal/logging"
	"github.com/five82/hordedream/internal/matrix"
	"github.com/five82/hordedream/internal/prefs"
	"github.com/five82/hordedream/internal/request"
	"github.com/five82/hordedream/internal/state"
	"github.com/five82/hordedream/internal/ui"
)

// Options configure one hordedream invocation.
type Options struct {
	ConfigPath string // empty uses cliRequestsData_Dream.yml in the working directory
	PrefsPath  string // empty uses ~/.config/hordedream/prefs.toml
	Overrides  request.Overrides

	Verbosity int
	Quiet     int

	TUI           bool
	ControlMatrix bool

	Stdout io.Writer
	Stderr io.Writer
}

// Run builds the request and drives it to completion: a dry-run estimate, a
// set of saved images, or a cancelled job.
func Run(ctx context.Context, opts Options) error {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	userPrefs := prefs.Load(opts.PrefsPath)
	tui := (opts.TUI || userPrefs.ProgressView) && !opts.ControlMatrix

	// Logs are held while the progress view owns the terminal.
	var held bytes.Buffer
	logOut := stderr
	if tui {
		logOut = &held
	}
	log := logging.New(logging.Options{Verbosity: opts.Verbosity, Quiet: opts.Quiet, Writer: logOut})
	defer func() {
		_ = log.Sync()
		if tui {
			_, _ = held.WriteTo(stderr)
		}
	}()

	file, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.Errorw("config rejected", "error", err)
		return fmt.Errorf("load config: %w", err)
	}
	if file.Path != "" {
		log.Debugf("Loaded request data from %s", file.Path)
	}

	settings := request.Resolve(file, opts.Overrides)
	if opts.ControlMatrix {
		settings.DryRun = true
	}
	req, err := request.Build(settings)
	if err != nil {
		log.Error(err)
		return fmt.Errorf("build request: %w", err)
	}

	client, err := horde.NewClient(settings.Horde)
	if err != nil {
		log.Errorw("invalid horde url", "horde", settings.Horde, "error", err)
		return fmt.Errorf("init horde client: %w", err)
	}
	log.Debugw("request prepared", "horde", client.BaseURL(), "request", request.Describe(req))

	if opts.ControlMatrix {
		return runMatrix(ctx, client, log, req, stdout)
	}

	store := &state.Store{}
	gen := NewGenerator(client, log, WithStore(store))

	var out Outcome
	if tui {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		err = ui.Run(ui.Options{
			Store:     store,
			Cancel:    cancel,
			Prompt:    req.Prompt,
			ThemeName: userPrefs.Theme,
			PrefsPath: opts.PrefsPath,
			Output:    stdout,
		}, func() error {
			var genErr error
			out, genErr = gen.Generate(ctx, req, settings.Filename)
			return genErr
		})
	} else {
		out, err = gen.Generate(ctx, req, settings.Filename)
	}
	if err != nil {
		return err
	}

	report(stdout, log, out)
	return nil
}

func runMatrix(ctx context.Context, client matrix.Submitter, log *zap.SugaredLogger, req horde.GenerationRequest, stdout io.Writer) error {
	rows, err := matrix.Run(ctx, client, log, req)
	if len(rows) > 0 {
		_, _ = fmt.Fprintln(stdout, matrix.Render(rows))
	}
	if err != nil {
		return fmt.Errorf("control matrix: %w", err)
	}
	return nil
}

func report(stdout io.Writer, log *zap.SugaredLogger, out Outcome) {
	if out.Estimate != nil {
		_, _ = fmt.Fprintf(stdout, "kudos: %.2f\n", *out.Estimate)
		return
	}
	if out.Cancelled {
		log.Infof("Job %s cancelled; saved %d finished image(s)", out.JobID, len(out.Saved))
	}
	if n := len(out.Skipped); n > 0 {
		log.Warnf("%d of %d image(s) could not be saved", n, n+len(out.Saved))
	}
}
