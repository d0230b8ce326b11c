// Package config holds the k8tenant runtime configuration.
//
// Configuration is read from a YAML file (k8tenant.yaml, found in the
// working directory or any parent), layered over [Default] values and
// finally overridden by K8TENANT_* environment variables. Provider
// credentials are never part of this file; they come from the environment,
// optionally seeded from a dotenv file via [LoadEnvFile].
package config
