// Package keystorage provides session-scoped slot stores for exported key
// material. Nothing written here is meant to outlive the session: MemoryStorage
// lives as long as the process and FileStorage lives in the login runtime
// directory.
package keystorage
