// Package jwt mints bearer tokens for the in-process fake backend and reads the
// registered time claims of tokens handed to the client.
//
// The client treats tokens as opaque credentials: [Inspect] never verifies a
// signature and is only used to learn when a session should be considered over.
package jwt
