// Package event defines the records agents emit and the framed messages
// the coordinator pushes to subscribers. Both sides of the worker pipe and
// the SSE boundary share these types, so the JSON field names are the wire
// contract.
package event
