// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: config.toml, exposed as dotted keys
//   - LoadDotEnv: .env files merged into the process environment
package file
