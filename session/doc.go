// Package session holds the current authenticated session of a client process and
// the compact binary encoding used when that session is kept in Redis.
//
// # Lifecycle
//
// A [Store] is empty at process start. It is replaced wholesale on every successful
// login or one-time-passcode verification and cleared on logout. Readers never observe
// a partially written [Session]: [MemoryStore] swaps an immutable pointer and
// [RedisStore] writes a single encoded value.
//
// # Binary encoding
//
// The encoder is append-only: new format versions may add trailing fields but never
// reinterpret old ones.
//
// # What this package must NOT do
//
//   - Import authflow, gateway, or jwt (no upward imports).
//   - Decide where a session navigates; routing belongs to the root package.
//   - Keep the one-time passcode or the user's password.
package session
