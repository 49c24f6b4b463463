// Package provision holds the domain model of a provisioning run.
//
// The State type records completed steps, installed packages and verified
// datasets so re-running the installer performs no redundant work. The Actor
// type identifies who ran the installer for the audit trail.
package provision
