package mpcap

// arena 是映射区域上的单调分配器。唯一的操作是整段预留：
// 要么一次拿到 n 字节，要么什么都不改。游标只进不退，区域不增长。
type arena struct {
	data []byte
	off  int
}

// reserve 返回区域内接下来的 n 字节；越界时返回 nil 且游标不动。
func (a *arena) reserve(n int) []byte {
	if n < 0 || n > len(a.data)-a.off {
		return nil
	}
	b := a.data[a.off : a.off+n : a.off+n]
	a.off += n
	return b
}

func (a *arena) used() int {
	return a.off
}
