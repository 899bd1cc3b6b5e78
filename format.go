package mpcap

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	MagicNumber        uint32 = 0xa1b2c3d4
	MagicNumberSwapped uint32 = 0xd4c3b2a1

	VersionMajor uint16 = 2
	VersionMinor uint16 = 4

	FileHeaderSize   = 24
	PacketHeaderSize = 16
)

const (
	DefaultFileSize    uint64 = 10 << 20
	DefaultSnapLen     uint32 = 65535
	DefaultPacketCount uint32 = 1000
)

// PacketType 是写入文件头 network 字段的链路类型。闭合枚举，其余值一律拒绝。
type PacketType uint32

const (
	PacketTypeNull     PacketType = 0
	PacketTypeEthernet PacketType = 1
	PacketTypePPP      PacketType = 9
	PacketTypeIP       PacketType = 12
	PacketTypeHDLC     PacketType = 104
)

var packetTypeNames = map[PacketType]string{
	PacketTypeNull:     "null",
	PacketTypeEthernet: "ethernet",
	PacketTypePPP:      "ppp",
	PacketTypeIP:       "ip",
	PacketTypeHDLC:     "hdlc",
}

func (t PacketType) Valid() bool {
	_, ok := packetTypeNames[t]
	return ok
}

func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// ParsePacketType 按名称解析链路类型，如 "ethernet"。
func ParsePacketType(s string) (PacketType, error) {
	for t, name := range packetTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPacketType, s)
}

type FileHeader struct {
	MagicNumber  uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	Network      uint32
}

type PacketHeader struct {
	TsSec   uint32
	TsUsec  uint32
	InclLen uint32
	OrigLen uint32
}

type Packet struct {
	Header    PacketHeader
	Data      []byte
	Timestamp time.Time
}

func (h *FileHeader) Put(b []byte, order binary.ByteOrder) {
	order.PutUint32(b[0:4], h.MagicNumber)
	order.PutUint16(b[4:6], h.VersionMajor)
	order.PutUint16(b[6:8], h.VersionMinor)
	order.PutUint32(b[8:12], uint32(h.ThisZone))
	order.PutUint32(b[12:16], h.SigFigs)
	order.PutUint32(b[16:20], h.SnapLen)
	order.PutUint32(b[20:24], h.Network)
}

// decodeFileHeader 从前 24 字节识别字节序并解出文件头。
// 魔数在两种字节序下都认不出来时返回 ErrInvalidMagicNumber。
func decodeFileHeader(b []byte) (FileHeader, binary.ByteOrder, error) {
	var order binary.ByteOrder
	switch binary.BigEndian.Uint32(b[0:4]) {
	case MagicNumber:
		order = binary.BigEndian
	case MagicNumberSwapped:
		order = binary.LittleEndian
	default:
		return FileHeader{}, nil, ErrInvalidMagicNumber
	}

	h := FileHeader{
		MagicNumber:  order.Uint32(b[0:4]),
		VersionMajor: order.Uint16(b[4:6]),
		VersionMinor: order.Uint16(b[6:8]),
		ThisZone:     int32(order.Uint32(b[8:12])),
		SigFigs:      order.Uint32(b[12:16]),
		SnapLen:      order.Uint32(b[16:20]),
		Network:      order.Uint32(b[20:24]),
	}
	return h, order, nil
}

func (h *PacketHeader) Put(b []byte, order binary.ByteOrder) {
	order.PutUint32(b[0:4], h.TsSec)
	order.PutUint32(b[4:8], h.TsUsec)
	order.PutUint32(b[8:12], h.InclLen)
	order.PutUint32(b[12:16], h.OrigLen)
}

func decodePacketHeader(b []byte, order binary.ByteOrder) PacketHeader {
	return PacketHeader{
		TsSec:   order.Uint32(b[0:4]),
		TsUsec:  order.Uint32(b[4:8]),
		InclLen: order.Uint32(b[8:12]),
		OrigLen: order.Uint32(b[12:16]),
	}
}

func (h *PacketHeader) GetTimestamp() time.Time {
	return time.Unix(int64(h.TsSec), int64(h.TsUsec)*1000).UTC()
}

func (p *Packet) CaptureLength() int {
	return len(p.Data)
}

func (p *Packet) OriginalLength() int {
	if p.Header.OrigLen == 0 {
		return len(p.Data)
	}
	return int(p.Header.OrigLen)
}
