// Package server wires the HTTP edge: the WebSocket event stream, the
// producer API, health and observability endpoints, and the per-IP
// connection limits that sit in front of admission control.
package server
