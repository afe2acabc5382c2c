// Package authflow is the client-side identity and verification flow: credential
// login, password reset requests, one-time passcode verification with a resend
// cooldown, and the role-based choice of landing route after authentication.
//
// A [Client] is assembled with [Builder] and hands out short-lived controllers
// ([LoginController], [ResetRequester], [OTPController]). Every controller
// operation returns an [Outcome]; failures carry a typed [Failure] and nothing
// untyped escapes a controller.
//
// # Architecture boundaries
//
// authflow is the public surface. Network access goes through the [Gateway]
// interface (see package gateway for the HTTP implementation), navigation
// through the injected [Navigator], and session persistence through
// [SessionStore] (see package session). Request discipline lives under
// internal/flows.
//
// # What this package must NOT do
//
//   - Perform HTTP itself or decide what an authenticated role may do.
//   - Write the session store on any path other than a successful login or
//     verification, or after a controller was disposed.
//   - Allow two requests in flight on one controller.
package authflow
