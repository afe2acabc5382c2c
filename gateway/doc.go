// Package gateway implements authflow.Gateway over HTTP with JSON payloads.
//
// Every call carries an X-Request-ID header and runs inside a client span.
// Non-2xx responses and transport failures are classified into
// *authflow.Failure values, so callers only ever see typed failures.
package gateway
