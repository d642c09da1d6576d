// Package file loads service settings from a TOML file, an optional .env
// file and SWEEP_* environment variables.
package file
