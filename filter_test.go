package mpcap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sofiworker/mpcap/packet"
	"golang.org/x/net/bpf"
)

// 首字节等于 'A' 才保留。
var firstByteA = []bpf.Instruction{
	bpf.LoadAbsolute{Off: 0, Size: 1},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x41, SkipTrue: 0, SkipFalse: 1},
	bpf.RetConstant{Val: 0xffff},
	bpf.RetConstant{Val: 0},
}

func TestFilterCopy(t *testing.T) {
	s, path := openTempSession(t, Config{PacketType: PacketTypeEthernet})
	s.AddBuffer(1.5, packet.Chain([]byte{0x41, 0x00}), 64) // 'A'
	s.AddBuffer(2.5, packet.Chain([]byte{0x42, 0x00}), 64) // 'B'
	s.AddBuffer(3.5, packet.Chain([]byte{0x41, 0x01}), 64) // 'A'
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "filtered.pcap")
	out, err := os.Create(outPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	n, err := FilterCopy(path, out, firstByteA)
	if err != nil {
		t.Fatalf("FilterCopy: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close output: %v", err)
	}
	if n != 2 {
		t.Fatalf("kept %d packets, want 2", n)
	}

	r, err := Map(outPath)
	if err != nil {
		t.Fatalf("Map output: %v", err)
	}
	defer r.Close()

	src, err := Map(path)
	if err != nil {
		t.Fatalf("Map source: %v", err)
	}
	defer src.Close()
	if r.Header() != src.Header() {
		t.Errorf("output header %+v differs from source %+v", r.Header(), src.Header())
	}

	for i, want := range [][]byte{{0x41, 0x00}, {0x41, 0x01}} {
		pkt, err := r.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket %d: %v", i+1, err)
		}
		if !bytes.Equal(pkt.Data, want) {
			t.Errorf("packet %d data = %x, want %x", i+1, pkt.Data, want)
		}
	}
}

func TestFilterCopyTruncatedSource(t *testing.T) {
	s, path := openTempSession(t, Config{PacketType: PacketTypeEthernet})
	s.AddBuffer(1, packet.Chain([]byte{0x41, 0x00, 0x00, 0x00}), 64)
	s.AddBuffer(2, packet.Chain([]byte{0x41, 0x00, 0x00, 0x01}), 64)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	var out bytes.Buffer
	n, err := FilterCopy(path, &out, firstByteA)
	if !errors.Is(err, ErrTruncatedRecord) {
		t.Fatalf("FilterCopy error = %v, want %v", err, ErrTruncatedRecord)
	}
	if n != 1 {
		t.Fatalf("kept %d packets before the bad tail, want 1", n)
	}
}

func TestFilterCopyBadProgram(t *testing.T) {
	path := writeSampleTrace(t)
	var out bytes.Buffer
	if _, err := FilterCopy(path, &out, nil); err == nil {
		t.Fatal("FilterCopy accepted an empty program")
	}
}
