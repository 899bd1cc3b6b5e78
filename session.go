// Package mpcap writes bounded, pcap-compatible packet traces into a
// memory-mapped file region. Appends are a bounds-checked cursor bump plus a
// copy; there is no blocking I/O on the packet path. A session closes itself
// when the region fills up or the configured packet count is reached.
package mpcap

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sofiworker/mpcap/packet"
)

// Config 追踪会话配置。零值字段取默认值。
type Config struct {
	FileName          string     // 追踪文件路径，必填
	NPacketsToCapture uint32     // 报文数上限，达到后自动关闭
	MaxFileSize       uint64     // 映射区域大小，也是文件体积上限
	PacketType        PacketType // 链路类型，零值为 null
	SnapLen           uint32     // 文件头对外声明的截获长度
	ThreadSafe        bool       // 为并发写入安装互斥锁
}

// Session 是一个打开的追踪文件：一块预先映射好的有界区域加一个写游标。
// 从 Open 成功到 Close 为止处于活动状态；之后所有追加都是无动作。
type Session struct {
	cfg    Config
	f      *os.File
	data   []byte
	arena  arena
	mu     *sync.Mutex // ThreadSafe 时非 nil，保护追加路径和 Close 的收尾
	header FileHeader

	packetsCaptured atomic.Uint32
	bytesWritten    atomic.Uint64
	active          atomic.Bool
}

func normalizeConfig(cfg Config) Config {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultFileSize
	}
	if cfg.NPacketsToCapture == 0 {
		cfg.NPacketsToCapture = DefaultPacketCount
	}
	if cfg.SnapLen == 0 {
		cfg.SnapLen = DefaultSnapLen
	}
	return cfg
}

// Open 建立追踪文件，把整个区域映射进来并写入文件头。
// 文件按 MaxFileSize 预先撑到位，Close 时再截回实际写入长度。
func Open(cfg Config) (*Session, error) {
	cfg = normalizeConfig(cfg)

	if cfg.FileName == "" {
		return nil, fmt.Errorf("mpcap: file name required")
	}
	if !cfg.PacketType.Valid() {
		return nil, fmt.Errorf("mpcap: %w: %d", ErrInvalidPacketType, uint32(cfg.PacketType))
	}
	if cfg.MaxFileSize < FileHeaderSize+PacketHeaderSize {
		return nil, fmt.Errorf("mpcap: %w: %d bytes", ErrFileSizeTooSmall, cfg.MaxFileSize)
	}
	if cfg.MaxFileSize > math.MaxInt {
		return nil, fmt.Errorf("mpcap: max file size %d out of range", cfg.MaxFileSize)
	}

	f, err := os.OpenFile(cfg.FileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("mpcap: create %s: %w", cfg.FileName, err)
	}
	if err := f.Truncate(int64(cfg.MaxFileSize)); err != nil {
		f.Close()
		os.Remove(cfg.FileName)
		return nil, fmt.Errorf("mpcap: size %s: %w", cfg.FileName, err)
	}

	data, err := mapShared(f, int(cfg.MaxFileSize), true)
	if err != nil {
		f.Close()
		os.Remove(cfg.FileName)
		return nil, fmt.Errorf("mpcap: map %s: %w", cfg.FileName, err)
	}

	s := &Session{
		cfg:   cfg,
		f:     f,
		data:  data,
		arena: arena{data: data},
		header: FileHeader{
			MagicNumber:  MagicNumber,
			VersionMajor: VersionMajor,
			VersionMinor: VersionMinor,
			SnapLen:      cfg.SnapLen,
			Network:      uint32(cfg.PacketType),
		},
	}
	if cfg.ThreadSafe {
		s.mu = new(sync.Mutex)
	}

	s.header.Put(s.arena.reserve(FileHeaderSize), binary.NativeEndian)
	s.bytesWritten.Store(FileHeaderSize)
	s.active.Store(true)
	return s, nil
}

func (s *Session) lock() {
	if s.mu != nil {
		s.mu.Lock()
	}
}

func (s *Session) unlock() {
	if s.mu != nil {
		s.mu.Unlock()
	}
}

// AddPacket 预留一条记录、填好记录头，返回供调用方填充的负载区。
// 返回 nil 表示这条报文没有存下来：会话已关闭，或剩余空间装不下。
// nil 不是错误；热路径上没有错误、没有分配、没有系统调用。
//
// now 是以秒计的时间戳，整数部分与微秒部分都向零截断。
// 守卫锁不在这里获取：直接调用方必须自己保证单写者。
func (s *Session) AddPacket(now float64, nBytesInTrace, nBytesInPacket uint32) []byte {
	if !s.active.Load() {
		return nil
	}

	rec := s.arena.reserve(PacketHeaderSize + int(nBytesInTrace))
	if rec == nil {
		return nil
	}

	sec := uint32(now)
	hdr := PacketHeader{
		TsSec:   sec,
		TsUsec:  uint32(1e6 * (now - float64(sec))),
		InclLen: nBytesInTrace,
		OrigLen: nBytesInPacket,
	}
	hdr.Put(rec[:PacketHeaderSize], binary.NativeEndian)

	s.packetsCaptured.Add(1)
	s.bytesWritten.Add(PacketHeaderSize + uint64(nBytesInTrace))
	return rec[PacketHeaderSize:]
}

// AddBuffer 从分段缓冲链追加一个报文，是捕获路径的逐包入口。
// 最多存 nBytesToTrace 字节，记录头里的原始长度始终是整条链的长度。
// 空间耗尽或报文数达到上限时，会话就地关闭；对调用方永远不报错。
func (s *Session) AddBuffer(now float64, b *packet.Buffer, nBytesToTrace uint32) {
	if b == nil || !s.active.Load() {
		return
	}

	total := uint32(b.TotalLength())
	stored := nBytesToTrace
	if total < stored {
		stored = total
	}

	s.lock()
	defer s.unlock()

	d := s.AddPacket(now, stored, total)
	if d == nil {
		_ = s.closeLocked()
		return
	}

	for seg := b; seg != nil && len(d) > 0; seg = seg.Next {
		n := copy(d, seg.Data)
		d = d[n:]
	}

	if s.packetsCaptured.Load() >= s.cfg.NPacketsToCapture {
		_ = s.closeLocked()
	}
}

// Close 收尾会话：同步映射区、把文件截回实际写入长度、解除映射。
// 幂等。有守卫锁时先取锁再收尾，所以可以和 ThreadSafe 会话上的并发
// 追加安全并存；无守卫会话仍要调用方先停住写入方。
func (s *Session) Close() error {
	s.lock()
	defer s.unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if !s.active.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	if err := syncShared(s.data); err != nil {
		firstErr = fmt.Errorf("mpcap: sync %s: %w", s.cfg.FileName, err)
	}
	if err := unmapShared(s.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("mpcap: unmap %s: %w", s.cfg.FileName, err)
	}
	s.data = nil
	s.arena.data = nil

	if err := s.f.Truncate(int64(s.bytesWritten.Load())); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("mpcap: truncate %s: %w", s.cfg.FileName, err)
	}
	if err := s.f.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("mpcap: close %s: %w", s.cfg.FileName, err)
	}
	return firstErr
}

// Active 报告会话是否仍可追加，是区分已关闭会话的正式途径。
func (s *Session) Active() bool {
	return s.active.Load()
}

func (s *Session) Header() FileHeader {
	return s.header
}

func (s *Session) FileName() string {
	return s.cfg.FileName
}

func (s *Session) PacketsCaptured() uint32 {
	return s.packetsCaptured.Load()
}

// BytesWritten 返回文件头加全部记录的字节数，也是 Close 后文件的长度。
func (s *Session) BytesWritten() uint64 {
	return s.bytesWritten.Load()
}
