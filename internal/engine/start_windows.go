// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

// Package engine adapts a local inference server into the chat capability.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// Windows-specific process creation flags
const (
	// CREATE_NO_WINDOW prevents a console window from being created
	CREATE_NO_WINDOW = 0x08000000
	// DETACHED_PROCESS creates a new process detached from the console
	DETACHED_PROCESS = 0x00000008
)

// findServerExecutable locates the inference server binary on Windows.
// Prefers PATH, then falls back to common installation directories.
func (c *Client) findServerExecutable() (string, error) {
	name := c.config.ServerCommand

	if path, err := exec.LookPath(name + ".exe"); err == nil {
		return path, nil
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	possiblePaths := []string{}

	// User install: %LOCALAPPDATA%\Programs\Ollama\ollama.exe
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		possiblePaths = append(possiblePaths, filepath.Join(localAppData, "Programs", "Ollama", name+".exe"))
	}

	possiblePaths = append(possiblePaths,
		filepath.Join(`C:\Program Files\Ollama`, name+".exe"),
		filepath.Join(`C:\Program Files (x86)\Ollama`, name+".exe"),
	)

	if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
		possiblePaths = append(possiblePaths,
			filepath.Join(userProfile, "Ollama", name+".exe"),
			filepath.Join(userProfile, ".ollama", name+".exe"),
		)
	}

	for _, p := range possiblePaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s.exe not found in PATH or common installation directories. "+
		"Checked: PATH, %%LOCALAPPDATA%%\\Programs\\Ollama, C:\\Program Files\\Ollama", name)
}

// startServerProcess launches the inference server in the background and
// waits for it to become reachable.
func (c *Client) startServerProcess(ctx context.Context) error {
	serverPath, err := c.findServerExecutable()
	if err != nil {
		return &ClientError{
			Code:    CodeNotRunning,
			Message: "failed to find inference server executable",
			Cause:   err,
		}
	}

	cmd := exec.Command(serverPath, "serve")

	// New process group, no console window, detached from the parent console.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | CREATE_NO_WINDOW | DETACHED_PROCESS,
	}

	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return &ClientError{
			Code:    CodeNotRunning,
			Message: fmt.Sprintf("failed to start inference server (path: %s)", serverPath),
			Cause:   err,
		}
	}

	if cmd.Process != nil {
		// Release is best-effort; the server keeps running either way.
		_ = cmd.Process.Release()
	}

	// Startup is slower on Windows, especially first launch: allow 15 seconds.
	deadline := time.Now().Add(15 * time.Second)
	var lastErr error

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return &ClientError{
				Code:    CodeNotRunning,
				Message: "inference server startup cancelled",
				Cause:   ctx.Err(),
			}
		default:
		}

		checkCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		lastErr = c.CheckRunning(checkCtx)
		cancel()

		if lastErr == nil {
			return nil
		}

		time.Sleep(500 * time.Millisecond)
	}

	return &ClientError{
		Code:    CodeNotRunning,
		Message: fmt.Sprintf("inference server started but not responding after 15 seconds (path: %s)", serverPath),
		Cause:   lastErr,
	}
}
