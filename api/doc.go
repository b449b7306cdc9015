// Package api defines the HTTP wire types shared by the Vigil handlers and
// clients, the uniform error shape, and the mapping from service errors to
// HTTP status codes.
//
// All request and response bodies are JSON. Errors are {"error": message}
// with the status code carrying the classification; message text is
// human-readable only, and signature failures are reported with one opaque
// message regardless of which sub-check failed.
package api
