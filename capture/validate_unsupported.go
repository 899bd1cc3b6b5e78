//go:build !linux

package capture

import (
	"fmt"
	"net"
)

func validateInterface(name string) error {
	if _, err := net.InterfaceByName(name); err != nil {
		return fmt.Errorf("capture: interface by name %q: %v: %w", name, err, ErrInvalidInterface)
	}
	return nil
}
