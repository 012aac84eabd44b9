//go:build windows

package main

import "os/exec"

// configureDaemonProc is a no-op; Windows children already outlive the parent.
func configureDaemonProc(cmd *exec.Cmd) {}
