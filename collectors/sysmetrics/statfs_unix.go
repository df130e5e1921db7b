//go:build linux || darwin

package sysmetrics

import "golang.org/x/sys/unix"

func statfs(path string) (diskStat, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return diskStat{}, err
	}
	return diskStat{
		Blocks: uint64(st.Blocks),
		Free:   uint64(st.Bfree),
		Avail:  uint64(st.Bavail),
	}, nil
}
