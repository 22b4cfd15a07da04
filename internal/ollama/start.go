// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// startupWait bounds how long EnsureRunning waits for a freshly started server.
const startupWait = 10 * time.Second

// EnsureRunning starts "ollama serve" in the background when the server is
// not answering, then waits for it to come up.
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}

	path, err := findOllamaExecutable()
	if err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not installed", Cause: err}
	}

	cmd := exec.Command(path, "serve")
	cmd.Env = os.Environ()
	cmd.SysProcAttr = detachedProcAttr()
	if err := cmd.Start(); err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: fmt.Sprintf("failed to start Ollama (path: %s)", path), Cause: err}
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}
	c.logger.Info("OLLAMA_STARTING", zap.String("path", path))

	start := time.Now()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(startupWait)

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama startup cancelled", Cause: ctx.Err()}
		case <-deadline:
			return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama started but is not responding", Cause: lastErr}
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			lastErr = c.CheckRunning(checkCtx)
			cancel()
			if lastErr == nil {
				c.logger.Info("OLLAMA_STARTED", zap.Duration("elapsed", time.Since(start)))
				return nil
			}
		}
	}
}

// findOllamaExecutable looks in PATH, then in the usual install locations.
func findOllamaExecutable() (string, error) {
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	var candidates []string
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			candidates = append(candidates, filepath.Join(local, "Programs", "Ollama", "ollama.exe"))
		}
		candidates = append(candidates, `C:\Program Files\Ollama\ollama.exe`)
	case "darwin":
		candidates = append(candidates,
			"/usr/local/bin/ollama",
			"/opt/homebrew/bin/ollama",
			"/Applications/Ollama.app/Contents/Resources/ollama",
		)
	default:
		candidates = append(candidates, "/usr/local/bin/ollama", "/usr/bin/ollama")
		if home != "" {
			candidates = append(candidates, filepath.Join(home, ".local", "bin", "ollama"))
		}
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ollama not found in PATH or common install locations")
}
