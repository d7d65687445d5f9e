// Package config loads relay configuration from an optional YAML file and the
// environment, applies defaults, and validates the result.
package config
