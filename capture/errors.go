package capture

import "errors"

var (
	ErrAlreadyEnabled   = errors.New("capture: already enabled")
	ErrNotEnabled       = errors.New("capture: not enabled")
	ErrInvalidInterface = errors.New("capture: invalid interface")
	ErrDigestMismatch   = errors.New("capture: manifest digest mismatch")
)
