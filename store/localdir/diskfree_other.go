//go:build !linux && !darwin && !freebsd

package localdir

import "errors"

func diskFree(path string) (uint64, error) {
	return 0, errors.New("free space is not available on this platform")
}
