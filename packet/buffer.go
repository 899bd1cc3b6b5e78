package packet

// Buffer 是报文的一个分段。帧在捕获路径上常以分段链出现
// （散布的环形槽、外挂的封装头），追踪引擎按链消费，不做拼接。
type Buffer struct {
	Data []byte
	Next *Buffer
}

// Chain 把若干分段按序串成一条链。没有分段时返回 nil。
func Chain(segs ...[]byte) *Buffer {
	var head, tail *Buffer
	for _, seg := range segs {
		b := &Buffer{Data: seg}
		if head == nil {
			head = b
		} else {
			tail.Next = b
		}
		tail = b
	}
	return head
}

// TotalLength 返回整条链的字节数。
func (b *Buffer) TotalLength() int {
	n := 0
	for seg := b; seg != nil; seg = seg.Next {
		n += len(seg.Data)
	}
	return n
}

// Segments 返回链上的分段个数。
func (b *Buffer) Segments() int {
	n := 0
	for seg := b; seg != nil; seg = seg.Next {
		n++
	}
	return n
}

// Bytes 把整条链拷成一个连续切片。诊断用，不在热路径上。
func (b *Buffer) Bytes() []byte {
	out := make([]byte, 0, b.TotalLength())
	for seg := b; seg != nil; seg = seg.Next {
		out = append(out, seg.Data...)
	}
	return out
}
