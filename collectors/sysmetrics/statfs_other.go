//go:build !linux && !darwin

package sysmetrics

import (
	"errors"
	"runtime"
)

func statfs(string) (diskStat, error) {
	return diskStat{}, errors.New("statfs not supported on " + runtime.GOOS)
}
