//go:build darwin || freebsd || linux

package fs

import (
	"time"

	"golang.org/x/sys/unix"
)

func modKey(path string) (ModKey, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return ModKey{}, err
	}
	sec, nsec := stat.Mtim.Unix()
	if sec == 0 && nsec == 0 {
		return ModKey{}, errModKeyUnusable
	}
	if time.Unix(sec+modKeySafetyGap, nsec).After(time.Now()) {
		return ModKey{}, errModKeyUnusable
	}
	return ModKey{
		inode:     uint64(stat.Ino),
		size:      stat.Size,
		mtimeSec:  sec,
		mtimeNsec: nsec,
		mode:      uint32(stat.Mode),
	}, nil
}
