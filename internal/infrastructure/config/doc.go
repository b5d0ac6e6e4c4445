// Package config loads FileDeck configuration from environment variables
// with envconfig. Every field has a default, so an empty environment yields
// a working local server; the serve command applies its flags on top.
//
// Sections and their main variables:
//   - Server: PORT, HOST, SHUTDOWN_TIMEOUT, CORS_ORIGINS
//   - Storage: DATA_DIR, DOCUMENT_ROOTS, MAX_READ_BYTES, WATCH_ROOTS,
//     WATCH_DEBOUNCE, WATCH_MAX_DIRS
//   - Editor: EDITOR_HISTORY_DEPTH, EDITOR_MAX_SESSIONS, EDITOR_IDLE_TIMEOUT
//   - Cloud: CLOUD_ENABLED, CLOUD_ENDPOINT, CLOUD_BUCKET, CLOUD_ACCESS_KEY, ...
//   - Auth: AUTH_SESSION_TTL, AUTH_BCRYPT_COST
//   - Logging: LOG_LEVEL, LOG_DEV, LOG_TO_FILE
//   - RateLimit: RATE_LIMIT_ENABLED, RATE_LIMIT_RPS, RATE_LIMIT_BURST
//
// Validate checks the constraints envconfig cannot express, such as a bucket
// being required once cloud storage is enabled.
package config
