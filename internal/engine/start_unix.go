// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

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

// findServerExecutable locates the inference server binary on Unix/macOS.
// Prefers PATH, then falls back to common installation directories.
func (c *Client) findServerExecutable() (string, error) {
	name := c.config.ServerCommand

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	possiblePaths := []string{
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/usr/bin", name),
		filepath.Join("/opt", name, name),
	}

	if home := os.Getenv("HOME"); home != "" {
		possiblePaths = append(possiblePaths,
			filepath.Join(home, ".local", "bin", name),
			filepath.Join(home, "bin", name),
		)
	}

	// macOS application bundle location
	possiblePaths = append(possiblePaths,
		"/Applications/Ollama.app/Contents/Resources/ollama",
	)

	for _, p := range possiblePaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common installation directories. "+
		"Checked: PATH, /usr/local/bin, /usr/bin, ~/.local/bin", name)
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

	// Pass the environment through so GPU-related variables reach the server.
	cmd.Env = os.Environ()

	// Setpgid: new process group so the server outlives this process.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
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

	// Poll until the server answers, up to 10 seconds.
	deadline := time.Now().Add(10 * time.Second)
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

		checkCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		lastErr = c.CheckRunning(checkCtx)
		cancel()

		if lastErr == nil {
			return nil
		}

		time.Sleep(500 * time.Millisecond)
	}

	return &ClientError{
		Code:    CodeNotRunning,
		Message: fmt.Sprintf("inference server started but not responding after 10 seconds (path: %s)", serverPath),
		Cause:   lastErr,
	}
}
