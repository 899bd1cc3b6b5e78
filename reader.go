package mpcap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Reader 以只读映射的方式枚举一个已写完的追踪文件。
// 只进不退，单协程使用；Data 直接指向映射区，Close 之前有效。
type Reader struct {
	f         *os.File
	data      []byte
	header    FileHeader
	byteOrder binary.ByteOrder
	off       int

	packetsRead    uint64
	minPacketBytes uint32
	maxPacketBytes uint32
}

// Map 打开并映射 path 指向的追踪文件。只校验文件头；
// 记录在 ReadPacket 时才逐条解析，坏尾巴不影响打开。
func Map(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mpcap: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mpcap: stat %s: %w", path, err)
	}
	if info.Size() < FileHeaderSize {
		f.Close()
		return nil, fmt.Errorf("mpcap: %s: %w", path, ErrInvalidFileHeader)
	}

	data, err := mapShared(f, int(info.Size()), false)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mpcap: map %s: %w", path, err)
	}

	header, order, err := decodeFileHeader(data[:FileHeaderSize])
	if err != nil {
		unmapShared(data)
		f.Close()
		return nil, fmt.Errorf("mpcap: %s: %w", path, err)
	}

	return &Reader{
		f:         f,
		data:      data,
		header:    header,
		byteOrder: order,
		off:       FileHeaderSize,
	}, nil
}

func (r *Reader) Header() FileHeader {
	return r.header
}

func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.byteOrder
}

// ReadPacket 返回下一条记录。文件读完返回 io.EOF；尾部残缺一条
// 不完整记录时返回 ErrTruncatedRecord，此前读出的记录仍然有效。
func (r *Reader) ReadPacket() (*Packet, error) {
	if r.data == nil {
		return nil, fmt.Errorf("mpcap: read: %w", os.ErrClosed)
	}

	remaining := len(r.data) - r.off
	if remaining == 0 {
		return nil, io.EOF
	}
	if remaining < PacketHeaderSize {
		return nil, ErrTruncatedRecord
	}

	hdr := decodePacketHeader(r.data[r.off:], r.byteOrder)
	if uint64(hdr.InclLen) > uint64(remaining-PacketHeaderSize) {
		return nil, ErrTruncatedRecord
	}

	start := r.off + PacketHeaderSize
	end := start + int(hdr.InclLen)
	r.off = end

	r.packetsRead++
	if r.packetsRead == 1 || hdr.InclLen < r.minPacketBytes {
		r.minPacketBytes = hdr.InclLen
	}
	if hdr.InclLen > r.maxPacketBytes {
		r.maxPacketBytes = hdr.InclLen
	}

	return &Packet{
		Header:    hdr,
		Data:      r.data[start:end:end],
		Timestamp: hdr.GetTimestamp(),
	}, nil
}

// Close 解除映射。此后已返回记录的 Data 不可再用。幂等。
func (r *Reader) Close() error {
	if r.data == nil {
		return nil
	}
	err := unmapShared(r.data)
	r.data = nil
	if cerr := r.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (r *Reader) PacketsRead() uint64 {
	return r.packetsRead
}

// MinPacketBytes 返回已读记录里最小的存储长度，没读过记录时为 0。
func (r *Reader) MinPacketBytes() uint32 {
	return r.minPacketBytes
}

func (r *Reader) MaxPacketBytes() uint32 {
	return r.maxPacketBytes
}
