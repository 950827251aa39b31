// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines common types, interfaces, and utilities that allow the codebase
// to work with multiple LLM providers (OpenAI-compatible, Anthropic, Gemini, Ollama)
// without being tightly coupled to any specific provider's wire format.
//
// # Core Concepts
//
//  1. Messages: The Message type represents a conversation message with role (user,
//     assistant, system) and content blocks (text, tool use, tool results).
//
//  2. Deltas: The Delta type is one normalized increment of streamed model output:
//     a text fragment plus any citations the provider attached to the chunk.
//     Deltas are produced by the wire subpackage's decoders.
//
//  3. Turns: The ModelTurn type is a fully consumed model turn: the final text and
//     any tool calls the model requested. The agent package's orchestrator operates
//     on turns, not on raw streams.
//
//  4. Client Interface: The Client interface provides Synchronous() for non-streaming
//     calls and Stream() for streaming calls. The Stream yields raw wire lines;
//     decoding is deliberately kept out of the transport so it can be tested against
//     literal provider payloads.
//
//  5. Errors: The Error type provides provider-neutral error handling. Transport
//     errors (non-2xx, network failure) are the only class that terminates a request
//     and reaches the user; everything else is absorbed close to where it occurred.
//
// # Subpackages
//
//   - wire: per-format line decoders and the format dispatch table.
//   - transport: HTTP transport implementing Client for all supported formats.
package llm
