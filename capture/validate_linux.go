//go:build linux

package capture

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

func validateInterface(name string) error {
	if _, err := netlink.LinkByName(name); err != nil {
		return fmt.Errorf("capture: link by name %q: %v: %w", name, err, ErrInvalidInterface)
	}
	return nil
}
