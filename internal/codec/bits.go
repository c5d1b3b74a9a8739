package codec

// BitSet 判断第 pos 位（0 起）是否为 1
func BitSet(v uint32, pos uint) bool {
	return (v>>pos)&1 == 1
}

// SetBit 置位
func SetBit(v uint32, pos uint) uint32 {
	return v | 1<<pos
}

// ClearBit 清位
func ClearBit(v uint32, pos uint) uint32 {
	return v &^ (1 << pos)
}

// BitsBetween 取 [start, end] 闭区间的位，结果右对齐
func BitsBetween(v uint32, start, end uint) uint32 {
	width := end - start + 1
	if width >= 32 {
		return v >> start
	}
	return (v >> start) & (1<<width - 1)
}

// BitCount 表示 v 所需的最少位数
func BitCount(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// IsPowerOfTwo 是否为 2 的幂
func IsPowerOfTwo(v uint32) bool {
	return v > 0 && v&(v-1) == 0
}
