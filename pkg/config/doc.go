// Package config loads environment-based configuration into tagged structs.
//
// Each package defines its own Config struct with `env` and `envDefault`
// tags; the application entrypoint loads them all at startup:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
package config
