// Package llm integrates the local Ollama runtime into the provisioning run.
//
// The Client probes the runtime HTTP status endpoint and lists installed
// models. EnsureReady implements the readiness contract: poll at a fixed
// interval up to a budget, restart the service once, poll again, and degrade
// to an advisory error instead of failing the whole installation.
package llm
