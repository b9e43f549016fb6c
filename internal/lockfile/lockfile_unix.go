//go:build !windows

package lockfile

import (
	"errors"
	"os"
	"syscall"
)

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	// EPERM means the process exists under another user
	return err == nil || errors.Is(err, syscall.EPERM)
}
