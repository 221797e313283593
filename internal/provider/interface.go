// Package provider selects and constructs the chat model used for document
// summaries and answers. MODEL_PROVIDER picks the backend; each backend reads
// its own native credential env vars.
package provider

import (
	"context"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Ollama holds settings for BackendOllama.
	Ollama ProviderOllama

	// OpenAI holds settings for BackendOpenAI.
	OpenAI ProviderOpenAI

	// AzureOpenAI holds settings for BackendAzure.
	AzureOpenAI ProviderAzureOpenAI

	// Ark holds settings for BackendArk.
	Ark ProviderArk

	// Gemini holds settings for BackendGemini.
	Gemini ProviderGemini

	// Tuning holds generation settings shared by all backends.
	Tuning SharedTuning
}

// ProviderOllama configures a local Ollama server.
type ProviderOllama struct {
	// Host is the Ollama API base URL.
	Host string
	// Model is the Ollama model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI configures the OpenAI API.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the OpenAI model name (e.g. "gpt-4o").
	Model string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string
}

// ProviderAzureOpenAI configures Azure OpenAI Service.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI resource key.
	APIKey string
	// Endpoint is the resource endpoint (https://<name>.openai.azure.com).
	Endpoint string
	// Deployment is the model deployment name.
	Deployment string
	// APIVersion is the Azure OpenAI REST API version.
	APIVersion string
}

// ProviderArk configures the Volcengine Ark runtime.
type ProviderArk struct {
	// APIKey is the Ark API key.
	APIKey string
	// Model is the Ark endpoint/model id.
	Model string
	// BaseURL overrides the default Ark endpoint.
	BaseURL string
	// Region is the Ark region (e.g. "cn-beijing").
	Region string
}

// ProviderGemini configures Google Gemini.
type ProviderGemini struct {
	// APIKey is the Google AI Studio API key.
	APIKey string
	// Model is the Gemini model name.
	Model string
}

// SharedTuning holds generation parameters applied at construction time.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int
	// Temperature is the default sampling temperature. Nil leaves the
	// provider default in place; per-call options still override it.
	Temperature *float32
}

// HealthCheckConfig is a zero-cost readiness check for a backend. It must not
// consume tokens.
type HealthCheckConfig interface {
	// HealthCheck returns nil when the backend is reachable and authorised.
	HealthCheck(ctx context.Context) error
}
