// Package config loads server configuration with viper from an optional
// config.yaml and NOTAPOINT_ environment variables.
package config
