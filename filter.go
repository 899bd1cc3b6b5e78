package mpcap

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/bpf"
)

// FilterCopy 把 path 中通过 prog 过滤的记录写入 w，返回保留的条数。
// 输出沿用源文件的字节序和文件头。遇到残缺尾记录时带着已有计数
// 返回 ErrTruncatedRecord，调用方用 errors.Is 自行取舍。
func FilterCopy(path string, w io.Writer, prog []bpf.Instruction) (int, error) {
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return 0, fmt.Errorf("mpcap: compile filter: %w", err)
	}

	r, err := Map(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var hdr [FileHeaderSize]byte
	header := r.Header()
	header.Put(hdr[:], r.ByteOrder())
	if _, err := w.Write(hdr[:]); err != nil {
		return 0, fmt.Errorf("mpcap: write file header: %w", err)
	}

	count := 0
	var rec [PacketHeaderSize]byte
	for {
		pkt, err := r.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}

		keep, err := vm.Run(pkt.Data)
		if err != nil {
			return count, fmt.Errorf("mpcap: run filter: %w", err)
		}
		if keep == 0 {
			continue
		}

		pkt.Header.Put(rec[:], r.ByteOrder())
		if _, err := w.Write(rec[:]); err != nil {
			return count, fmt.Errorf("mpcap: write record: %w", err)
		}
		if _, err := w.Write(pkt.Data); err != nil {
			return count, fmt.Errorf("mpcap: write record: %w", err)
		}
		count++
	}
}
