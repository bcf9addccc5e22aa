// Package config handles layered YAML configuration with environment
// overrides for the documentation cache service.
//
// Configuration merges in priority order: built-in defaults, then each
// config file passed to LoadLayered (later files win), then TOOLCONTEXT_*
// environment variables. Secret-bearing fields support ${VAR} expansion
// so credentials stay out of config files.
package config
