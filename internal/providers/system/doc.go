// Package system exposes server information and a small ring buffer of
// diagnostic messages reported by clients.
package system
