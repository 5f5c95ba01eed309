//go:build unix

package files

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskUsage reports capacity of the filesystem holding path
type DiskUsage struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
}

// GetDiskUsage calls statfs on path
func GetDiskUsage(path string) (*DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}

	bsize := uint64(st.Bsize)
	total := uint64(st.Blocks) * bsize
	free := uint64(st.Bavail) * bsize
	used := total - uint64(st.Bfree)*bsize

	return &DiskUsage{Total: total, Used: used, Free: free}, nil
}
