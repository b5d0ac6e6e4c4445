// Package ws streams server events to connected clients over WebSocket.
//
// A client connects to /stream with a Bearer token (header or ?token=)
// and receives the events published for its user, such as cloud sync
// progress. Clients may send {"type":"ping"} and receive {"type":"pong"}.
//
// Message format:
//
//	{"type": "sync.progress", "data": {...}, "timestamp": 1700000000}
package ws
