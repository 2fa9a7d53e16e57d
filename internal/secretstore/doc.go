// Package secretstore reads and writes the Correos account password.
//
// Three backends are supported, with different security and deployment tradeoffs:
//   - File: local file with owner-only permissions, written atomically
//   - Env: read-only environment variable (secret managed externally)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, Secret Service)
//
// Access tokens are never stored here; they live only in process memory.
package secretstore
