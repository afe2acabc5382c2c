// Package flows holds the request discipline shared by every flow controller.
//
// # Architecture boundaries
//
// A [Guard] knows nothing about gateways, sessions, or navigation. Controllers
// reserve a request slot with Begin, perform their network call, and apply
// side effects inside Finish so that a disposed controller never commits a
// late response.
//
// # What this package must NOT do
//
//   - Import authflow (to avoid import cycles).
//   - Perform I/O.
package flows
