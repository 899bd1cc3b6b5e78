package mpcap

import "errors"

var (
	ErrInvalidMagicNumber = errors.New("mpcap: invalid magic number")
	ErrInvalidFileHeader  = errors.New("mpcap: invalid file header")
	ErrTruncatedRecord    = errors.New("mpcap: truncated packet record")
	ErrFileSizeTooSmall   = errors.New("mpcap: max file size too small")
	ErrInvalidPacketType  = errors.New("mpcap: invalid packet type")
	ErrNotSupported       = errors.New("mpcap: not supported on this platform")
)
