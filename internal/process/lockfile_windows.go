//go:build windows
// +build windows

package process

import (
	"fmt"
	"os"
	"strconv"

	constants "procwatch/config"
)

// LockFile represents ownership of the PID file.
type LockFile struct {
	path string
}

// Acquire writes the PID file after verifying no other instance is
// running. Windows has no flock; liveness of the recorded pid is the
// single-instance check instead.
func Acquire() (*LockFile, error) {
	if IsRunning() {
		return nil, fmt.Errorf("another procwatch instance is already running")
	}
	if err := os.WriteFile(constants.PID_FILE, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}
	return &LockFile{path: constants.PID_FILE}, nil
}

// Release removes the PID file.
func (lf *LockFile) Release() error {
	if lf.path == "" {
		return nil
	}
	os.Remove(lf.path)
	lf.path = ""
	return nil
}
