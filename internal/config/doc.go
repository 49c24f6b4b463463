// Package config defines the provisioning settings used by the labkit
// binaries and provides helpers to load, validate and save them in YAML
// format.
//
// The Config type holds the lab root, the Python and Jupyter parameters, the
// dataset and notebook lists, and the local LLM runtime settings. Validate
// fills platform-aware defaults so a minimal settings file stays short.
package config
