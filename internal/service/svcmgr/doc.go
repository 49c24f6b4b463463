// Package svcmgr abstracts the OS-native service managers used for the lab
// autostart mechanism: systemd user units on Linux, LaunchAgents on macOS and
// Task Scheduler logon tasks on Windows.
//
// Install serializes a platform definition from the shared Definition type
// and registers it, overwriting previous versions. Systemd access prefers the
// dbus API and falls back to the systemctl binary when no bus is available.
package svcmgr
