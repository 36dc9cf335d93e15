// Package server provides the admin HTTP server for the gateway.
//
// The server exposes operational surfaces only: liveness and readiness
// probes, Prometheus metrics exposition, the plain-text rolling-window
// export, and a JSON status summary. Application traffic never passes
// through it; calls to the remote API go through the interceptor, not
// an HTTP listener.
package server
