package store

//go:generate msgp -tests=false

// Value kinds recorded in keyMeta.
const (
	kindList uint8 = 1
	kindSet  uint8 = 2
)

// keyMeta describes one collection key in the ordered-KV layout.
//
// Lists occupy positions [Head, Tail); pushing left decrements Head and pushing
// right increments Tail, so both ends grow without moving existing items.
// Sorted sets only use Count.
type keyMeta struct {
	Kind  uint8 `msg:"k"`
	Head  int64 `msg:"h"`
	Tail  int64 `msg:"t"`
	Count int64 `msg:"n"`
}

func (m *keyMeta) length() int64 {
	if m == nil {
		return 0
	}

	if m.Kind == kindSet {
		return m.Count
	}

	return m.Tail - m.Head
}
