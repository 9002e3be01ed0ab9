// Package config loads and validates AV Bridge Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// AVBRIDGE_* environment variable overrides. Validation runs eagerly at
// load time so a misconfigured bridge fails fast rather than at first use.
package config
