// Package request assembles Horde generation requests from built-in
// defaults, the persisted configuration and command-line overrides.
package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/five82/hordedream/internal/config"
	"github.com/five82/hordedream/internal/horde"
	"github.com/five82/hordedream/internal/imagecodec"
)

// Settings is the fully merged view of one invocation. Source fields hold
// file paths; Build turns them into encoded payloads.
type Settings struct {
	ClientAgent string
	APIKey      string
	Filename    string
	Horde       string

	Params         horde.GenerationParams
	Prompt         string
	NSFW           bool
	CensorNSFW     bool
	TrustedWorkers bool
	Models         []string
	R2             bool
	DryRun         bool

	SourceImage      string
	SourceProcessing string
	SourceMask       string
}

// Overrides carries command-line values. Zero values mean "not given".
type Overrides struct {
	APIKey           string
	Filename         string
	Horde            string
	Amount           int
	Width            int
	Height           int
	Steps            int
	Prompt           string
	NSFW             bool
	CensorNSFW       bool
	TrustedWorkers   bool
	DryRun           bool
	SourceImage      string
	SourceProcessing string
	SourceMask       string
}

const (
	AnonymousAPIKey   = "0000000000"
	DefaultFilename   = "horde_dream.png"
	DefaultPrompt     = "a horde of cute stable robots in a sprawling server room repairing a massive mainframe"
	DefaultSampler    = "k_euler_a"
	DefaultModel      = "stable_diffusion"
	ProcessingImg2Img = "img2img"

	// BlockSize is the granularity the Horde requires for width and height.
	BlockSize = 64
)

// Defaults returns the built-in settings.
func Defaults() Settings {
	denoise := 0.6
	return Settings{
		ClientAgent: horde.DefaultClientAgent,
		APIKey:      AnonymousAPIKey,
		Filename:    DefaultFilename,
		Horde:       horde.DefaultBaseURL,
		Params: horde.GenerationParams{
			N:                 1,
			Width:             BlockSize * 8,
			Height:            BlockSize * 8,
			Steps:             20,
			SamplerName:       DefaultSampler,
			CfgScale:          7.5,
			DenoisingStrength: &denoise,
		},
		Prompt:           DefaultPrompt,
		Models:           []string{DefaultModel},
		R2:               true,
		SourceProcessing: ProcessingImg2Img,
	}
}

// Resolve merges defaults, the config file and overrides, in that order of
// increasing precedence.
func Resolve(file config.File, o Overrides) Settings {
	return Defaults().Apply(file).Override(o)
}

// Apply merges the persisted configuration key by key.
func (s Settings) Apply(f config.File) Settings {
	setString(&s.APIKey, f.APIKey)
	setString(&s.Filename, f.Filename)
	setString(&s.ClientAgent, f.ClientAgent)
	setString(&s.Horde, f.Horde)
	setString(&s.SourceImage, f.SourceImage)
	setString(&s.SourceProcessing, f.SourceProcessing)
	setString(&s.SourceMask, f.SourceMask)

	if p := f.ImgenParams; p != nil {
		setInt(&s.Params.N, p.N)
		setInt(&s.Params.Width, p.Width)
		setInt(&s.Params.Height, p.Height)
		setInt(&s.Params.Steps, p.Steps)
		setString(&s.Params.SamplerName, p.SamplerName)
		setString(&s.Params.ControlType, p.ControlType)
		if p.CfgScale != nil {
			s.Params.CfgScale = *p.CfgScale
		}
		if p.DenoisingStrength != nil {
			s.Params.DenoisingStrength = floatPtr(*p.DenoisingStrength)
		}
		if p.ControlStrength != nil {
			s.Params.ControlStrength = floatPtr(*p.ControlStrength)
		}
	}

	if d := f.SubmitDict; d != nil {
		setString(&s.Prompt, d.Prompt)
		setBool(&s.NSFW, d.NSFW)
		setBool(&s.CensorNSFW, d.CensorNSFW)
		setBool(&s.TrustedWorkers, d.TrustedWorkers)
		setBool(&s.R2, d.R2)
		setBool(&s.DryRun, d.DryRun)
		if d.Models != nil {
			s.Models = append([]string(nil), d.Models...)
		}
	}
	return s
}

// Override applies command-line values on top of s.
func (s Settings) Override(o Overrides) Settings {
	if v := strings.TrimSpace(o.APIKey); v != "" {
		s.APIKey = v
	}
	if v := strings.TrimSpace(o.Filename); v != "" {
		s.Filename = v
	}
	if v := strings.TrimSpace(o.Horde); v != "" {
		s.Horde = v
	}
	if o.Amount > 0 {
		s.Params.N = o.Amount
	}
	if o.Width > 0 {
		s.Params.Width = o.Width
	}
	if o.Height > 0 {
		s.Params.Height = o.Height
	}
	if o.Steps > 0 {
		s.Params.Steps = o.Steps
	}
	if o.Prompt != "" {
		s.Prompt = o.Prompt
	}
	if o.NSFW {
		s.NSFW = true
	}
	if o.CensorNSFW {
		s.CensorNSFW = true
	}
	if o.TrustedWorkers {
		s.TrustedWorkers = true
	}
	if o.DryRun {
		s.DryRun = true
	}
	if v := strings.TrimSpace(o.SourceImage); v != "" {
		s.SourceImage = v
	}
	if v := strings.TrimSpace(o.SourceProcessing); v != "" {
		s.SourceProcessing = v
	}
	if v := strings.TrimSpace(o.SourceMask); v != "" {
		s.SourceMask = v
	}
	return s
}

// Build produces the submission payload, reading and encoding the source
// image and mask when set. It fails with *FileError before any network I/O
// when a source file is missing or not an image.
func Build(s Settings) (horde.GenerationRequest, error) {
	params := s.Params
	if params.DenoisingStrength != nil {
		params.DenoisingStrength = floatPtr(*params.DenoisingStrength)
	}
	if params.ControlStrength != nil {
		params.ControlStrength = floatPtr(*params.ControlStrength)
	}

	req := horde.GenerationRequest{
		ClientAgent:      s.ClientAgent,
		APIKey:           s.APIKey,
		Prompt:           s.Prompt,
		Params:           params,
		NSFW:             s.NSFW,
		CensorNSFW:       s.CensorNSFW,
		TrustedWorkers:   s.TrustedWorkers,
		Models:           append([]string(nil), s.Models...),
		R2:               s.R2,
		DryRun:           s.DryRun,
		SourceProcessing: s.SourceProcessing,
	}

	if s.SourceImage != "" {
		encoded, err := encodeSource("source image", s.SourceImage)
		if err != nil {
			return horde.GenerationRequest{}, err
		}
		req.SourceImage = encoded
	}
	if s.SourceMask != "" {
		encoded, err := encodeSource("source mask", s.SourceMask)
		if err != nil {
			return horde.GenerationRequest{}, err
		}
		req.SourceMask = encoded
	}
	return req, nil
}

func encodeSource(role, path string) (string, error) {
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return "", &FileError{Role: role, Path: path, Err: err}
	}
	encoded, err := imagecodec.EncodeSourceFile(resolved)
	if err != nil {
		return "", &FileError{Role: role, Path: path, Err: err}
	}
	return encoded, nil
}

// Redact returns a copy of req that is safe to log: embedded images are
// replaced by a note of their encoded size.
func Redact(req horde.GenerationRequest) horde.GenerationRequest {
	out := req
	out.Models = append([]string(nil), req.Models...)
	if req.SourceImage != "" {
		out.SourceImage = fmt.Sprintf("img2img request with size: %d", len(req.SourceImage))
	}
	if req.SourceMask != "" {
		out.SourceMask = fmt.Sprintf("mask with size: %d", len(req.SourceMask))
	}
	return out
}

// Describe renders the redacted request as JSON for diagnostics.
func Describe(req horde.GenerationRequest) string {
	data, err := json.Marshal(Redact(req))
	if err != nil {
		return fmt.Sprintf("%+v", Redact(req))
	}
	return string(data)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
