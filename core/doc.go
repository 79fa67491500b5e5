// Package core provides the foundational domain types used throughout Canopy.
// It defines the core abstractions for:
//
//   - Messages (the conversation transcript exchanged with callers)
//   - Content / Parts (ordered role-based turns exchanged with model backends,
//     covering text, function calls, function responses and inline media)
//   - Identifier helpers for correlating calls and responses
//
// The package intentionally keeps implementation concerns (model transport,
// engine orchestration, tool execution) out of scope so that higher layers can
// depend on small, stable value types.
package core
