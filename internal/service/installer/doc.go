// Package installer implements the provisioning run of the lab environment.
//
// The run is a fixed, data-driven step sequence: directories, system
// packages, virtual environment, pip packages, datasets, notebooks, emitted
// artifacts, autostart registration and the LLM runtime. Every step carries
// an idempotency check, so re-running the installer on an already provisioned
// machine performs no redundant work. Required steps abort the run on
// failure; optional steps degrade to warnings.
package installer
