// Package verifier inspects a provisioned lab environment and reports its
// health as a table: directories, virtual environment, dataset checksums,
// emitted artifacts, the autostart service and the LLM runtime. Required
// check failures make the command exit non-zero for scripted use.
package verifier
