// Package authtest provides an in-process auth backend implementing the four
// endpoints consumed by authflow: login, forgot-password, verify-otp, and
// resend-otp.
//
// It is meant for tests, examples, and the CLI's fake-backend command. Codes
// are random unless fixed with [Server.SetFixedCode], and any endpoint can be
// made to fail once with [Server.FailNext].
package authtest
