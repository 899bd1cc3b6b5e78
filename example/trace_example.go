//go:build ignore
// +build ignore

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/net/bpf"

	"github.com/sofiworker/mpcap"
	"github.com/sofiworker/mpcap/packet"
)

func main() {
	// Example 1: Write a bounded trace
	fmt.Println("=== Example 1: Write a trace ===")
	writeTraceExample()

	// Example 2: Read it back
	fmt.Println("\n=== Example 2: Read a trace ===")
	readTraceExample()

	// Example 3: Filter into a new file
	fmt.Println("\n=== Example 3: Filter a trace ===")
	filterTraceExample()
}

const tracePath = "/tmp/mpcap_example.pcap"

// writeTraceExample opens a small memory mapped trace and fills it.
func writeTraceExample() {
	sess, err := mpcap.Open(mpcap.Config{
		FileName:          tracePath,
		MaxFileSize:       64 << 10,
		NPacketsToCapture: 100,
		PacketType:        mpcap.PacketTypeEthernet,
		SnapLen:           256,
	})
	if err != nil {
		log.Fatalf("open trace: %v", err)
	}

	now := float64(time.Now().UnixNano()) / float64(time.Second)

	// Reserve space and fill the payload in place.
	if dst := sess.AddPacket(now, 5, 5); dst != nil {
		copy(dst, "hello")
	}

	// Segmented frames go in through a buffer chain.
	frame := &packet.Buffer{
		Data: []byte("head"),
		Next: &packet.Buffer{Data: []byte("tail")},
	}
	sess.AddBuffer(now+0.001, frame, 256)

	if err := sess.Close(); err != nil {
		log.Fatalf("close trace: %v", err)
	}
	fmt.Printf("wrote %d packets, %d bytes\n", sess.PacketsCaptured(), sess.BytesWritten())
}

// readTraceExample maps the finished trace and walks every record.
func readTraceExample() {
	r, err := mpcap.Map(tracePath)
	if err != nil {
		log.Fatalf("map trace: %v", err)
	}
	defer r.Close()

	fmt.Printf("link type: %d, snap length: %d\n", r.Header().Network, r.Header().SnapLen)
	for {
		pkt, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("read packet: %v", err)
		}
		fmt.Printf("%s  %d bytes  %q\n", pkt.Timestamp.Format(time.RFC3339Nano), pkt.Header.InclLen, pkt.Data)
	}
}

// filterTraceExample keeps only packets whose first byte is 'h'.
func filterTraceExample() {
	out, err := os.Create("/tmp/mpcap_example_filtered.pcap")
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer out.Close()

	prog := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 0, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 'h', SkipFalse: 1},
		bpf.RetConstant{Val: 0xffff},
		bpf.RetConstant{Val: 0},
	}

	kept, err := mpcap.FilterCopy(tracePath, out, prog)
	if err != nil {
		log.Fatalf("filter trace: %v", err)
	}
	fmt.Printf("kept %d packets\n", kept)
}
