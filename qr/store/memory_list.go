package store

// memoryList is a double-ended list of byte slices.
// front holds the left part in reverse order and back holds the right part in
// order, so pushes and pops at both ends are amortized O(1).
type memoryList struct {
	front [][]byte
	back  [][]byte
}

func (l *memoryList) len() int64 {
	return int64(len(l.front) + len(l.back))
}

// at returns the element at position i, which must be in range.
func (l *memoryList) at(i int64) []byte {
	if f := int64(len(l.front)); i < f {
		return l.front[f-1-i]
	}

	return l.back[i-int64(len(l.front))]
}

func (l *memoryList) pushLeft(v []byte) {
	l.front = append(l.front, v)
}

func (l *memoryList) pushRight(v []byte) {
	l.back = append(l.back, v)
}

func (l *memoryList) popLeft() ([]byte, bool) {
	if n := len(l.front); n > 0 {
		v := l.front[n-1]
		l.front[n-1] = nil
		l.front = l.front[:n-1]

		return v, true
	}

	if len(l.back) == 0 {
		return nil, false
	}

	v := l.back[0]
	l.back[0] = nil
	l.back = l.back[1:]

	return v, true
}

func (l *memoryList) popRight() ([]byte, bool) {
	if n := len(l.back); n > 0 {
		v := l.back[n-1]
		l.back[n-1] = nil
		l.back = l.back[:n-1]

		return v, true
	}

	if len(l.front) == 0 {
		return nil, false
	}

	v := l.front[0]
	l.front[0] = nil
	l.front = l.front[1:]

	return v, true
}

// slice copies the elements in [lo, hi).
func (l *memoryList) slice(lo, hi int64) [][]byte {
	out := make([][]byte, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, l.at(i))
	}

	return out
}
