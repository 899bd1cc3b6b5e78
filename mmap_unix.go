//go:build unix

package mpcap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapShared(f *os.File, size int, write bool) ([]byte, error) {
	prot := unix.PROT_READ
	if write {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
}

func unmapShared(data []byte) error {
	return unix.Munmap(data)
}

func syncShared(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}
