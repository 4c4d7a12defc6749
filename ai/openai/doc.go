// Package openai implements the ai.Embedder interface against any
// OpenAI-compatible embeddings endpoint (OpenAI itself, Ollama,
// LocalAI, vLLM).
package openai
