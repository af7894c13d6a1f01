package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File captures the persisted request configuration. Every field is optional;
// nil means the key was absent and the built-in default stays in effect.
type File struct {
	APIKey           *string `yaml:"api_key" toml:"api_key"`
	Filename         *string `yaml:"filename" toml:"filename"`
	ClientAgent      *string `yaml:"client_agent" toml:"client_agent"`
	Horde            *string `yaml:"horde" toml:"horde"`
	ImgenParams      *Params `yaml:"imgen_params" toml:"imgen_params"`
	SubmitDict       *Submit `yaml:"submit_dict" toml:"submit_dict"`
	SourceImage      *string `yaml:"source_image" toml:"source_image"`
	SourceProcessing *string `yaml:"source_processing" toml:"source_processing"`
	SourceMask       *string `yaml:"source_mask" toml:"source_mask"`

	// Path is the resolved file the values came from; empty when no file was read.
	Path string `yaml:"-" toml:"-"`
}

// Params holds overrides for the generation parameters.
type Params struct {
	N                 *int     `yaml:"n" toml:"n"`
	Width             *int     `yaml:"width" toml:"width"`
	Height            *int     `yaml:"height" toml:"height"`
	Steps             *int     `yaml:"steps" toml:"steps"`
	SamplerName       *string  `yaml:"sampler_name" toml:"sampler_name"`
	CfgScale          *float64 `yaml:"cfg_scale" toml:"cfg_scale"`
	DenoisingStrength *float64 `yaml:"denoising_strength" toml:"denoising_strength"`
	ControlType       *string  `yaml:"control_type" toml:"control_type"`
	ControlStrength   *float64 `yaml:"control_strength" toml:"control_strength"`
}

// Submit holds overrides for the submission metadata.
type Submit struct {
	Prompt         *string  `yaml:"prompt" toml:"prompt"`
	NSFW           *bool    `yaml:"nsfw" toml:"nsfw"`
	CensorNSFW     *bool    `yaml:"censor_nsfw" toml:"censor_nsfw"`
	TrustedWorkers *bool    `yaml:"trusted_workers" toml:"trusted_workers"`
	Models         []string `yaml:"models" toml:"models"`
	R2             *bool    `yaml:"r2" toml:"r2"`
	DryRun         *bool    `yaml:"dry_run" toml:"dry_run"`
}

// DefaultPath is read from the working directory when no path is given.
const DefaultPath = "cliRequestsData_Dream.yml"

// Load reads the request configuration. A missing file at the default path
// yields an empty File; a missing explicit path is an error. Unknown keys are
// rejected.
func Load(path string) (File, error) {
	explicit := strings.TrimSpace(path) != ""
	resolved, err := resolvePath(path)
	if err != nil {
		return File{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return File{}, nil
		}
		return File{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}

	var cfg File
	if isTOML(resolved) {
		err = decodeTOML(data, &cfg)
	} else {
		err = decodeYAML(data, &cfg)
	}
	if err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	cfg.Path = resolved
	return cfg, nil
}

func decodeYAML(data []byte, dest *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, dest *File) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultPath)
	}
	return expandPath(path)
}

// ExpandPath resolves a leading tilde and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
