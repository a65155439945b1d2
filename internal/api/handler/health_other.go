//go:build !linux && !darwin && !windows

package handler

func getDiskStats(path string) (total, free int64) {
	return 0, 0
}
