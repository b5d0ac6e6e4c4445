// Package middleware provides the gin middleware stack for the FileDeck API.
//
// Middleware stack includes:
//   - CORS: cross-origin resource sharing with configurable origins
//   - RateLimit: per-IP token bucket limiting with idle client cleanup
//   - Auth: Bearer token or HTTP Basic credentials resolved to a user
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	router.Use(middleware.Auth(authProvider, logger))
package middleware
