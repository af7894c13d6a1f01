package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/five82/hordedream/internal/horde"
	"github.com/five82/hordedream/internal/imagecodec"
	"github.com/five82/hordedream/internal/request"
)

// OutputPath returns the file name for generation index of total. A single
// image uses base unchanged; otherwise the index is prefixed to the file name.
func OutputPath(base string, index, total int) string {
	if total <= 1 {
		return base
	}
	dir, file := filepath.Split(base)
	return filepath.Join(dir, fmt.Sprintf("%d_%s", index, file))
}

// retrieve writes every generation in status to disk. A faulted job writes
// nothing and returns *FaultedJobError.
func (g *Generator) retrieve(ctx context.Context, req horde.GenerationRequest, id string, status *horde.StatusResponse, filename string) ([]SavedImage, []PartialDownloadError, error) {
	if status.Faulted {
		details := request.Describe(req)
		g.log.Errorf("Something went wrong when generating the request. Please contact the horde administrator with your request details: %s", details)
		return nil, nil, &FaultedJobError{JobID: id, Request: details}
	}

	var (
		saved   []SavedImage
		skipped []PartialDownloadError
	)
	total := len(status.Generations)
	for i, gen := range status.Generations {
		path := OutputPath(filename, i, total)
		if err := g.save(ctx, req.R2, gen, path); err != nil {
			partial := PartialDownloadError{Index: i, GenerationID: gen.ID, Path: path, Err: err}
			g.log.Error(partial.Error())
			skipped = append(skipped, partial)
			continue
		}

		censored := ""
		if gen.Censored {
			censored = " (censored)"
		}
		g.log.Infof("Saved%s %s", censored, path)
		saved = append(saved, SavedImage{Path: path, GenerationID: gen.ID, Censored: gen.Censored})
	}
	return saved, skipped, nil
}

func (g *Generator) save(ctx context.Context, r2 bool, gen horde.Generation, path string) error {
	if r2 {
		if isURL(gen.Img) {
			g.log.Debugf("Downloading '%s' from %s", gen.ID, gen.Img)
			data, err := g.client.FetchImage(ctx, gen.Img)
			if err != nil {
				return fmt.Errorf("download: %w", err)
			}
			return imagecodec.WriteFile(path, data)
		}
		g.log.Warnf("Received inline image data for '%s' despite r2 transfer", gen.ID)
	}

	data, err := imagecodec.DecodeBase64(gen.Img)
	if err != nil {
		return err
	}
	return imagecodec.WriteImage(path, data)
}

func isURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
