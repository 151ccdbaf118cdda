// Package config loads container configuration with viper and godotenv.
//
// Values are layered: Default, then the YAML file (explicit or found in
// ".", "./config" or "./cmd/<app>"), then an environment overlay file
// (config.production.yml next to config.yml), then environment variables.
// Each config key maps to one variable name:
//
//	cfg, err := config.Load("orders", config.WithEnvPrefix("IOC"))
//	// registry.allow_circular_references <- IOC_REGISTRY_ALLOW_CIRCULAR_REFERENCES
package config
