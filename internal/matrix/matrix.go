// Package matrix runs a dry-run kudos survey over control and denoising
// strength combinations.
package matrix

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/five82/hordedream/internal/horde"
)

// ControlType is the control type toggled on for the second half of every
// case.
const ControlType = "canny"

// Submitter is the part of the Horde client a survey needs.
type Submitter interface {
	Submit(ctx context.Context, req horde.GenerationRequest) (horde.SubmitResult, error)
}

// Case is one parameter combination. A nil strength is left out of the
// request.
type Case struct {
	Name              string
	ControlStrength   *float64
	DenoisingStrength *float64
}

// Cases returns the survey's parameter combinations in run order.
func Cases() []Case {
	return []Case{
		{Name: "high_control_strength_no_denoise", ControlStrength: f(1.0)},
		{Name: "low_control_strength_no_denoise", ControlStrength: f(0.1)},
		{Name: "no_control_strength_high_denoise", DenoisingStrength: f(1.0)},
		{Name: "no_control_strength_low_denoise", DenoisingStrength: f(0.1)},
		{Name: "low_control_strength_and_low_denoise", ControlStrength: f(0.1), DenoisingStrength: f(0.1)},
		{Name: "low_control_strength_and_high_denoise", ControlStrength: f(0.1), DenoisingStrength: f(1.0)},
		{Name: "high_control_strength_and_low_denoise", ControlStrength: f(1.0), DenoisingStrength: f(0.1)},
	}
}

const (
	WithSourceImage    = "with_source_image"
	WithoutSourceImage = "without_source_image"
)

// Cell is one dry-run result.
type Cell struct {
	Kudos float64
	Err   error
}

// Row holds both control type variants of one case and source variant.
type Row struct {
	Case           string
	Source         string
	WithoutControl Cell
	WithControl    Cell
}

// Run submits every case as a dry run, first without and then with
// ControlType. When base carries a source image each case runs both with and
// without it. Failed submissions are logged and recorded in their cell; only
// cancellation of ctx stops the survey early, returning the rows so far.
func Run(ctx context.Context, client Submitter, log *zap.SugaredLogger, base horde.GenerationRequest) ([]Row, error) {
	base.DryRun = true

	sources := []string{WithoutSourceImage}
	if base.SourceImage != "" {
		sources = []string{WithSourceImage, WithoutSourceImage}
	}

	var rows []Row
	for _, c := range Cases() {
		log.Warnf("test: %s", c.Name)
		for _, source := range sources {
			req := variant(base, c, source)
			log.Infof("subtest: [%s] %s", source, c.Name)

			row := Row{Case: c.Name, Source: source}
			row.WithoutControl = submit(ctx, client, log, req)

			req.Params.ControlType = ControlType
			row.WithControl = submit(ctx, client, log, req)

			if err := ctx.Err(); err != nil {
				return rows, err
			}
			log.Infof("with control_type:    %s", row.WithControl)
			log.Infof("without control_type: %s", row.WithoutControl)
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func variant(base horde.GenerationRequest, c Case, source string) horde.GenerationRequest {
	req := base
	req.Models = append([]string(nil), base.Models...)
	req.Params.ControlType = ""
	req.Params.ControlStrength = c.ControlStrength
	req.Params.DenoisingStrength = c.DenoisingStrength
	if source == WithoutSourceImage {
		req.SourceImage = ""
		req.SourceMask = ""
	}
	return req
}

func submit(ctx context.Context, client Submitter, log *zap.SugaredLogger, req horde.GenerationRequest) Cell {
	res, err := client.Submit(ctx, req)
	if err != nil {
		log.Errorw("dry run failed", "control_type", req.Params.ControlType, "error", err)
		return Cell{Err: err}
	}
	if kudos, ok := res.Estimate(); ok {
		return Cell{Kudos: kudos}
	}
	job, _ := res.Job()
	log.Warnf("Horde created job %s for a dry run", job.ID)
	return Cell{Kudos: job.Kudos}
}

func (c Cell) String() string {
	if c.Err != nil {
		return "error"
	}
	return fmt.Sprintf("%.2f", c.Kudos)
}

func f(v float64) *float64 { return &v }
