// Package http implements the FileDeck REST handlers.
//
// Endpoints:
//   - GET  /                   service banner
//   - GET  /health             component health
//   - GET  /services           list services, optional ?category=
//   - POST /services/discover  rank services for an intent
//   - POST /services/execute   run a tool as the calling user
//   - POST /auth/register      create an account
//   - POST /auth/login         exchange credentials for a bearer token
//   - POST /auth/logout        revoke the bearer token
//   - GET  /metrics/json       aggregated metrics snapshot
package http
