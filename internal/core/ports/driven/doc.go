// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - CorpusReader: Produces group ID -> messages for ingestion
//   - Embedder: Maps text to a vector for one language
//   - EmbedderProvider: Resolves and caches an Embedder per language
//   - MessageStore: Relational sink for messages and summary probabilities
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
