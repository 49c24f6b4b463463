// Package render emits the templated text artifacts of the lab: the Jupyter
// server configuration, the HTML shortcut page and the backup launcher
// scripts.
//
// Rendering is deterministic: the same Values produce identical bytes, and
// WriteArtifact always overwrites the previous version at its fixed path.
// Service definitions (systemd units, LaunchAgent plists, Scheduled Task
// XML) are serialized by the svcmgr package instead.
package render
