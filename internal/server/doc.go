// Package server exposes the coordinator over HTTP: control endpoints
// for spawn/pause/resume/kill and a Server-Sent Events stream that
// relays the coordinator's subscriber frames. It is deliberately thin;
// all simulation logic lives behind the coordinator's operations.
package server
