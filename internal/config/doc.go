// Package config loads the mazewarden server configuration from YAML
// and optional scenario presets from TOML. Environment variables in the
// form ${VAR_NAME} are expanded before parsing, and duration fields are
// written as Go duration strings ("170ms", "3s").
package config
