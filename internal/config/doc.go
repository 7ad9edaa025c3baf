// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// which keeps the session token out of the file itself:
//
//	api:
//	  token: ${ELUDRIS_TOKEN}
package config
