// Package config loads Groundwork configuration.
//
// Values come from built-in defaults, then an optional YAML file named by
// GROUNDWORK_CONFIG_FILE, then GROUNDWORK_* environment variables:
//
//	GROUNDWORK_PORT=8080
//	GROUNDWORK_DATABASE_URL=postgres://groundwork@localhost/groundwork?sslmode=disable
//	GROUNDWORK_REDIS_URL=redis://localhost:6379/0
//	GROUNDWORK_S3_BUCKET=groundwork
//	GROUNDWORK_OIDC_ISSUER_URL=https://accounts.example.com
//	GROUNDWORK_OIDC_CLIENT_ID=groundwork
//	GROUNDWORK_LOG_LEVEL=debug
//
// WatchLogLevel hot-reloads observability.log_level from the YAML file.
package config
