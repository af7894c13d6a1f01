// Package config loads the persisted request configuration for hordedream.
//
// # Overview
//
// A YAML or TOML file in the working directory can override any attribute of
// the generation request. The file is decoded into an explicit struct where
// each key is known and typed; a misspelled key is reported as an error.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it (it must exist)
//  2. Otherwise, use ./cliRequestsData_Dream.yml
//  3. If the default file doesn't exist, return an empty File
//
// Files ending in .toml are parsed as TOML; anything else is parsed as YAML.
//
// # Configuration Fields
//
// Top-level keys:
//
//   - api_key, filename, client_agent, horde
//   - source_image, source_processing, source_mask
//   - imgen_params: n, width, height, steps, sampler_name, cfg_scale,
//     denoising_strength, control_type, control_strength
//   - submit_dict: prompt, nsfw, censor_nsfw, trusted_workers, models, r2,
//     dry_run
//
// Nested tables are merged key by key over the defaults. Setting only
// imgen_params.steps leaves width, height and the rest untouched.
//
// # YAML Format
//
// Example cliRequestsData_Dream.yml:
//
//	api_key: "0000000000"
//	filename: out/dream.png
//	imgen_params:
//	  n: 4
//	  steps: 30
//	submit_dict:
//	  prompt: "a lighthouse in a storm"
//	  models: ["stable_diffusion_2.1"]
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - A missing file at an explicitly requested path
//   - Parse errors, including unknown keys
//
// The package is stateless: it returns a File value and keeps no globals.
package config
