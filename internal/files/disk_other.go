//go:build !unix

package files

import "fmt"

// DiskUsage reports capacity of the filesystem holding path
type DiskUsage struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
}

// GetDiskUsage is not supported on this platform
func GetDiskUsage(path string) (*DiskUsage, error) {
	return nil, fmt.Errorf("disk usage not supported on this platform")
}
