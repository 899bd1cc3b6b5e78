//go:build !unix

package mpcap

import "os"

func mapShared(f *os.File, size int, write bool) ([]byte, error) {
	return nil, ErrNotSupported
}

func unmapShared(data []byte) error {
	return nil
}

func syncShared(data []byte) error {
	return nil
}
