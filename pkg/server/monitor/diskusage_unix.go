//go:build !windows

package monitor

import (
	"os"
	"syscall"
)

// diskUsage returns allocated blocks in bytes, falling back to logical size
func diskUsage(_ string, info os.FileInfo) int64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		// Blocks are 512 bytes on Unix systems
		return stat.Blocks * 512
	}
	return info.Size()
}
