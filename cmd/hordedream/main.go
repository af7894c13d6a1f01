package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/five82/hordedream/internal/app"
	"github.com/five82/hordedream/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "hordedream: %v\n", err)
		return 2
	}
	opts.Stdout = stdout
	opts.Stderr = stderr

	if err := app.Run(ctx, opts); err != nil {
		_, _ = fmt.Fprintf(stderr, "hordedream: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (app.Options, error) {
	var opts app.Options
	o := &opts.Overrides

	fs := pflag.NewFlagSet("hordedream", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: hordedream [flags]\n\nSubmit an image generation to the AI Horde and save the results.\n\n")
		fs.PrintDefaults()
	}

	fs.IntVarP(&o.Amount, "amount", "n", 0, "number of images to generate")
	fs.StringVarP(&o.Prompt, "prompt", "p", "", "prompt to generate an image from")
	fs.IntVarP(&o.Width, "width", "w", 0, "image width in pixels (multiple of 64)")
	fs.IntVarP(&o.Height, "height", "l", 0, "image height in pixels (multiple of 64)")
	fs.IntVarP(&o.Steps, "steps", "s", 0, "number of sampling steps")
	fs.StringVar(&o.APIKey, "api_key", "", "AI Horde API key (anonymous when unset)")
	fs.StringVarP(&o.Filename, "filename", "f", "", "output file name; several images get an index prefix")
	fs.CountVarP(&opts.Verbosity, "verbosity", "v", "increase log verbosity (repeatable)")
	fs.CountVarP(&opts.Quiet, "quiet", "q", "decrease log verbosity (repeatable)")
	fs.StringVar(&o.Horde, "horde", "", "AI Horde base URL")
	fs.BoolVar(&o.NSFW, "nsfw", false, "allow NSFW generations")
	fs.BoolVar(&o.CensorNSFW, "censor_nsfw", false, "censor NSFW generations when SFW workers pick the job")
	fs.BoolVar(&o.TrustedWorkers, "trusted_workers", false, "only use trusted workers")
	fs.StringVar(&o.SourceImage, "source_image", "", "image file for img2img")
	fs.StringVar(&o.SourceProcessing, "source_processing", "", "source processing: img2img, inpainting or outpainting")
	fs.StringVar(&o.SourceMask, "source_mask", "", "mask image file for inpainting")
	fs.BoolVar(&o.DryRun, "dry_run", false, "only ask the Horde for the kudos cost")

	fs.StringVar(&opts.ConfigPath, "config", "", "request data file (default "+config.DefaultPath+")")
	fs.StringVar(&opts.PrefsPath, "prefs", "", "preferences file (default ~/.config/hordedream/prefs.toml)")
	fs.BoolVar(&opts.TUI, "tui", false, "show a live progress view")
	fs.BoolVar(&opts.ControlMatrix, "control_matrix", false, "run a dry-run kudos survey over control and denoise settings")

	if err := fs.Parse(args); err != nil {
		return app.Options{}, err
	}
	if fs.NArg() > 0 {
		return app.Options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}
