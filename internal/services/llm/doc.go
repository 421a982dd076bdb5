// Package llm provides an OpenRouter-compatible chat client used by the label
// reader.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.CompleteJSON: system/user prompts, JSON response.
// Client.CompleteVisionJSON: instruction plus image bytes, JSON response.
// Client.CompleteText: free-text completion for label summaries.
// DecodeLLMJSON: tolerant decoder for model output (code fences, prose around
// the object).
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, network timeouts, and empty
// completions with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). A Retry-After header takes precedence over the computed delay.
// Context cancellation aborts retries immediately.
//
// # Errors
//
// A missing API key yields services.ErrProviderUnavailable. Every transport or
// response failure is tagged services.ErrProviderError.
package llm
