// Package config defines the service configuration, loaded from a YAML
// file with optional environment variable overrides.
//
// The loading sequence is: parse the YAML file, apply defaults for
// unset fields, apply AEGIS_* environment overrides, then validate.
// Validation collects every problem into a single ValidationError
// rather than stopping at the first, so operators can fix a broken
// config in one pass.
package config
