package packet

import "sync"

const DefaultSegSize = 2048

// Pool 复用分段，减小高包速下的分配压力。Put 一次归还整条链。
type Pool struct {
	segSize int
	p       sync.Pool
}

func NewPool(segSize int) *Pool {
	if segSize <= 0 {
		segSize = DefaultSegSize
	}
	pool := &Pool{segSize: segSize}
	pool.p.New = func() any {
		return &Buffer{Data: make([]byte, 0, segSize)}
	}
	return pool
}

func (p *Pool) SegSize() int {
	return p.segSize
}

// Get 取出一个空分段，Data 长度为 0，容量为池的分段大小。
func (p *Pool) Get() *Buffer {
	return p.p.Get().(*Buffer)
}

// Put 归还 b 起始的整条链，分段逐个清零后回池。
func (p *Pool) Put(b *Buffer) {
	for b != nil {
		next := b.Next
		b.Next = nil
		b.Data = b.Data[:0]
		p.p.Put(b)
		b = next
	}
}
