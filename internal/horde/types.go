package horde

// GenerationParams mirrors the "params" object of an async generation request.
type GenerationParams struct {
	N                 int      `json:"n"`
	Width             int      `json:"width"`
	Height            int      `json:"height"`
	Steps             int      `json:"steps"`
	SamplerName       string   `json:"sampler_name"`
	CfgScale          float64  `json:"cfg_scale"`
	DenoisingStrength *float64 `json:"denoising_strength,omitempty"`
	ControlType       string   `json:"control_type,omitempty"`
	ControlStrength   *float64 `json:"control_strength,omitempty"`
}

// GenerationRequest is the payload POSTed to /api/v2/generate/async. The
// client agent and API key travel as headers, not in the body.
type GenerationRequest struct {
	ClientAgent string `json:"-"`
	APIKey      string `json:"-"`

	Prompt           string           `json:"prompt"`
	Params           GenerationParams `json:"params"`
	NSFW             bool             `json:"nsfw"`
	CensorNSFW       bool             `json:"censor_nsfw"`
	TrustedWorkers   bool             `json:"trusted_workers"`
	Models           []string         `json:"models"`
	R2               bool             `json:"r2"`
	DryRun           bool             `json:"dry_run"`
	SourceImage      string           `json:"source_image,omitempty"`
	SourceProcessing string           `json:"source_processing,omitempty"`
	SourceMask       string           `json:"source_mask,omitempty"`
}

// Warning is a non-fatal notice attached to a submission response.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitResponse mirrors the body returned by /api/v2/generate/async.
type SubmitResponse struct {
	ID       string    `json:"id"`
	Kudos    float64   `json:"kudos"`
	Message  string    `json:"message"`
	Warnings []Warning `json:"warnings"`
}

// JobHandle identifies an accepted asynchronous generation.
type JobHandle struct {
	ID       string
	Kudos    float64
	Message  string
	Warnings []Warning
}

// SubmitResult is either a dry-run cost estimate or a job handle.
type SubmitResult struct {
	job   *JobHandle
	kudos float64
}

// NewEstimate wraps a dry-run cost estimate.
func NewEstimate(kudos float64) SubmitResult {
	return SubmitResult{kudos: kudos}
}

// NewJob wraps an accepted job.
func NewJob(h JobHandle) SubmitResult {
	return SubmitResult{job: &h, kudos: h.Kudos}
}

// Job returns the handle when the submission created a job.
func (r SubmitResult) Job() (JobHandle, bool) {
	if r.job == nil {
		return JobHandle{}, false
	}
	return *r.job, true
}

// Estimate returns the kudos cost when the submission was a dry run.
func (r SubmitResult) Estimate() (float64, bool) {
	if r.job != nil {
		return 0, false
	}
	return r.kudos, true
}

// CheckResponse mirrors /api/v2/generate/check/{id}.
type CheckResponse struct {
	Done          bool    `json:"done"`
	Faulted       bool    `json:"faulted"`
	Finished      int     `json:"finished"`
	Processing    int     `json:"processing"`
	Waiting       int     `json:"waiting"`
	Restarted     int     `json:"restarted"`
	QueuePosition int     `json:"queue_position"`
	WaitTime      int     `json:"wait_time"`
	Kudos         float64 `json:"kudos"`
	IsPossible    bool    `json:"is_possible"`
}

// Generation is one finished image in a status response. Img holds either a
// hosted URL (R2 mode) or base64 image data.
type Generation struct {
	ID         string `json:"id"`
	Img        string `json:"img"`
	Censored   bool   `json:"censored"`
	Seed       string `json:"seed"`
	Model      string `json:"model"`
	WorkerID   string `json:"worker_id"`
	WorkerName string `json:"worker_name"`
	State      string `json:"state"`
}

// StatusResponse mirrors GET and DELETE /api/v2/generate/status/{id}.
type StatusResponse struct {
	CheckResponse
	Generations []Generation `json:"generations"`
}
