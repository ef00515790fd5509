// Package config loads notify-client configuration.
//
// Configuration comes from a YAML file in which ${VAR} references are
// expanded from the environment. NOTIFY_* environment variables then
// override individual fields, defaults fill whatever is still unset, and
// Validate rejects the result if it cannot work.
package config
