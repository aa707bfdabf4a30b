// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: document record persistence
//   - ChunkStore: chunk record persistence and similarity search
//   - TextExtractor: turns a source file into ordered page text
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: generates vector embeddings. Without it, similarity
//     search (and therefore the chat surface) is disabled.
//   - LLMService: language model operations. Without it, chat is disabled;
//     ingestion and direct search still work.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
