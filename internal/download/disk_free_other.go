//go:build !linux && !darwin && !windows

package download

// getFreeDiskSpace reports 0 (unknown) where no statfs equivalent exists.
func getFreeDiskSpace(path string) int64 {
	return 0
}
