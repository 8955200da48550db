package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// kvTxn is the minimal read-write transaction the ordered-KV backends expose.
// Reads observe the transaction's own writes.
type kvTxn interface {
	// get returns a copy of the value at key, or nil when absent.
	get(key []byte) ([]byte, error)
	put(key, value []byte) error
	del(key []byte) error
	// scan visits keys starting with prefix in ascending byte order until fn
	// returns false. Keys and values passed to fn are only valid during the call.
	scan(prefix []byte, fn func(key, value []byte) bool) error
}

// Key layout shared by the bbolt and pebble backends. Collection keys never
// contain NUL, which makes the separator unambiguous.
//
//	m<key>                      -> msgp keyMeta
//	l<key>\x00<pos>             -> list element at position pos
//	z<key>\x00<member>          -> member score
//	s<key>\x00<score><member>   -> empty, rank index
const (
	prefixMeta   = 'm'
	prefixItem   = 'l'
	prefixMember = 'z'
	prefixScore  = 's'
	keySeparator = 0x00
)

func metaKey(key string) []byte {
	return append([]byte{prefixMeta}, key...)
}

func collectionPrefix(kind byte, key string) []byte {
	b := make([]byte, 0, len(key)+2)
	b = append(b, kind)
	b = append(b, key...)

	return append(b, keySeparator)
}

func itemKey(key string, pos int64) []byte {
	//nolint:gosec // flipping the sign bit keeps big-endian order of signed positions.
	return binary.BigEndian.AppendUint64(collectionPrefix(prefixItem, key), uint64(pos)^(1<<63))
}

func memberKey(key string, member []byte) []byte {
	return append(collectionPrefix(prefixMember, key), member...)
}

func scoreKey(key string, score float64, member []byte) []byte {
	b := binary.BigEndian.AppendUint64(collectionPrefix(prefixScore, key), sortableFloat(score))

	return append(b, member...)
}

// sortableFloat maps a float64 to a uint64 whose unsigned order matches the
// numeric order of the float.
func sortableFloat(f float64) uint64 {
	bits := math.Float64bits(normalizeScore(f))
	if bits>>63 == 0 {
		return bits ^ (1 << 63)
	}

	return ^bits
}

// unsortableFloat reverses sortableFloat.
func unsortableFloat(u uint64) float64 {
	if u>>63 == 1 {
		return math.Float64frombits(u ^ (1 << 63))
	}

	return math.Float64frombits(^u)
}

func encodeScore(score float64) []byte {
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(score))
}

func decodeScore(b []byte) float64 {
	if len(b) < 8 {
		return 0
	}

	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func loadMeta(txn kvTxn, key string) (*keyMeta, error) {
	raw, err := txn.get(metaKey(key))
	if err != nil {
		return nil, fmt.Errorf("%w: meta %q: %w", ErrStoreReadFailed, key, err)
	}

	if raw == nil {
		return nil, nil //nolint:nilnil // absent key has no metadata.
	}

	meta := new(keyMeta)
	if _, err := meta.UnmarshalMsg(raw); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrMetaDecodeFailed, key, err)
	}

	return meta, nil
}

// saveMeta persists meta or removes it when the collection became empty.
func saveMeta(txn kvTxn, key string, meta *keyMeta) error {
	if meta.length() == 0 {
		if err := txn.del(metaKey(key)); err != nil {
			return fmt.Errorf("%w: meta %q: %w", ErrStoreWriteFailed, key, err)
		}

		return nil
	}

	raw, err := meta.MarshalMsg(nil)
	if err != nil {
		return fmt.Errorf("%w: meta %q: %w", ErrStoreWriteFailed, key, err)
	}

	if err := txn.put(metaKey(key), raw); err != nil {
		return fmt.Errorf("%w: meta %q: %w", ErrStoreWriteFailed, key, err)
	}

	return nil
}

// metaOfKind loads the metadata at key and checks its kind.
func metaOfKind(txn kvTxn, key string, kind uint8) (*keyMeta, error) {
	meta, err := loadMeta(txn, key)
	if err != nil {
		return nil, err
	}

	if meta != nil && meta.Kind != kind {
		return nil, fmt.Errorf("%w: %q", ErrWrongType, key)
	}

	return meta, nil
}

// execOrdered runs every operation of batch against txn.
func execOrdered(txn kvTxn, batch *Batch) ([]Reply, error) {
	replies := make([]Reply, 0, batch.Len())

	for _, op := range batch.Ops() {
		reply, err := applyOrdered(txn, op)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", op.Kind, op.Key, err)
		}

		replies = append(replies, reply)
	}

	return replies, nil
}

//nolint:cyclop // dispatch over every primitive.
func applyOrdered(txn kvTxn, op Op) (Reply, error) {
	switch op.Kind {
	case OpPushLeft, OpPushRight:
		return orderedPush(txn, op)
	case OpPopLeft, OpPopRight:
		return orderedPop(txn, op)
	case OpTrim:
		return Reply{}, orderedTrim(txn, op)
	case OpRange:
		return orderedRange(txn, op)
	case OpIndex:
		return orderedIndex(txn, op)
	case OpLength:
		meta, err := metaOfKind(txn, op.Key, kindList)

		return Reply{Count: meta.length()}, err
	case OpDelete:
		return orderedDelete(txn, op.Key)
	case OpScoreAdd:
		return orderedScoreAdd(txn, op)
	case OpScoreRange:
		members, err := orderedScoreRange(txn, op)

		return Reply{Members: members}, err
	case OpScoreRemoveRangeByRank:
		return orderedScoreRemove(txn, op)
	case OpScoreCard:
		meta, err := metaOfKind(txn, op.Key, kindSet)

		return Reply{Count: meta.length()}, err
	default:
		return Reply{}, ErrUnknownOp
	}
}

func orderedPush(txn kvTxn, op Op) (Reply, error) {
	meta, err := metaOfKind(txn, op.Key, kindList)
	if err != nil {
		return Reply{}, err
	}

	if meta == nil {
		meta = &keyMeta{Kind: kindList}
	}

	for _, v := range op.Values {
		var pos int64

		if op.Kind == OpPushLeft {
			meta.Head--
			pos = meta.Head
		} else {
			pos = meta.Tail
			meta.Tail++
		}

		if err := txn.put(itemKey(op.Key, pos), v); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}
	}

	if err := saveMeta(txn, op.Key, meta); err != nil {
		return Reply{}, err
	}

	return Reply{Count: meta.length()}, nil
}

func orderedPop(txn kvTxn, op Op) (Reply, error) {
	meta, err := metaOfKind(txn, op.Key, kindList)
	if err != nil || meta.length() == 0 {
		return Reply{}, err
	}

	var pos int64

	if op.Kind == OpPopLeft {
		pos = meta.Head
		meta.Head++
	} else {
		meta.Tail--
		pos = meta.Tail
	}

	k := itemKey(op.Key, pos)

	value, err := txn.get(k)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrStoreReadFailed, err)
	}

	if err := txn.del(k); err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}

	if err := saveMeta(txn, op.Key, meta); err != nil {
		return Reply{}, err
	}

	if value == nil {
		value = []byte{}
	}

	return Reply{Value: value, Found: true}, nil
}

func orderedTrim(txn kvTxn, op Op) error {
	meta, err := metaOfKind(txn, op.Key, kindList)
	if err != nil || meta == nil {
		return err
	}

	lo, hi, ok := normalizeRange(op.Start, op.Stop, meta.length())
	if !ok {
		lo, hi = 0, 0
	}

	newHead, newTail := meta.Head+lo, meta.Head+hi

	for pos := meta.Head; pos < meta.Tail; pos++ {
		if pos >= newHead && pos < newTail {
			continue
		}

		if err := txn.del(itemKey(op.Key, pos)); err != nil {
			return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}
	}

	meta.Head, meta.Tail = newHead, newTail

	return saveMeta(txn, op.Key, meta)
}

func orderedRange(txn kvTxn, op Op) (Reply, error) {
	meta, err := metaOfKind(txn, op.Key, kindList)
	if err != nil {
		return Reply{}, err
	}

	lo, hi, ok := normalizeRange(op.Start, op.Stop, meta.length())
	if !ok {
		return Reply{Values: [][]byte{}}, nil
	}

	values := make([][]byte, 0, clamp(int(hi-lo), 0, 4096))

	for i := lo; i < hi; i++ {
		v, err := txn.get(itemKey(op.Key, meta.Head+i))
		if err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreReadFailed, err)
		}

		if v == nil {
			v = []byte{}
		}

		values = append(values, v)
	}

	return Reply{Values: values}, nil
}

func orderedIndex(txn kvTxn, op Op) (Reply, error) {
	meta, err := metaOfKind(txn, op.Key, kindList)
	if err != nil {
		return Reply{}, err
	}

	i, ok := normalizeIndex(op.Start, meta.length())
	if !ok {
		return Reply{}, nil
	}

	v, err := txn.get(itemKey(op.Key, meta.Head+i))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrStoreReadFailed, err)
	}

	if v == nil {
		v = []byte{}
	}

	return Reply{Value: v, Found: true}, nil
}

func orderedDelete(txn kvTxn, key string) (Reply, error) {
	meta, err := loadMeta(txn, key)
	if err != nil || meta == nil {
		return Reply{}, err
	}

	var doomed [][]byte

	if meta.Kind == kindList {
		for pos := meta.Head; pos < meta.Tail; pos++ {
			doomed = append(doomed, itemKey(key, pos))
		}
	} else {
		for _, prefix := range [][]byte{collectionPrefix(prefixMember, key), collectionPrefix(prefixScore, key)} {
			err := txn.scan(prefix, func(k, _ []byte) bool {
				doomed = append(doomed, slices.Clone(k))

				return true
			})
			if err != nil {
				return Reply{}, fmt.Errorf("%w: %w", ErrStoreReadFailed, err)
			}
		}
	}

	doomed = append(doomed, metaKey(key))

	for _, k := range doomed {
		if err := txn.del(k); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}
	}

	return Reply{Count: 1}, nil
}

func orderedScoreAdd(txn kvTxn, op Op) (Reply, error) {
	meta, err := metaOfKind(txn, op.Key, kindSet)
	if err != nil {
		return Reply{}, err
	}

	if meta == nil {
		meta = &keyMeta{Kind: kindSet}
	}

	var added int64

	for _, m := range op.Members {
		score := normalizeScore(m.Score)
		mk := memberKey(op.Key, m.Member)

		old, err := txn.get(mk)
		if err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreReadFailed, err)
		}

		if old != nil {
			if err := txn.del(scoreKey(op.Key, decodeScore(old), m.Member)); err != nil {
				return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
			}
		} else {
			added++
			meta.Count++
		}

		if err := txn.put(mk, encodeScore(score)); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}

		if err := txn.put(scoreKey(op.Key, score, m.Member), []byte{}); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}
	}

	if err := saveMeta(txn, op.Key, meta); err != nil {
		return Reply{}, err
	}

	return Reply{Count: added}, nil
}

// orderedScoreRange walks the rank index and collects members with rank in
// the requested inclusive bounds.
func orderedScoreRange(txn kvTxn, op Op) ([]ScoredMember, error) {
	meta, err := metaOfKind(txn, op.Key, kindSet)
	if err != nil {
		return nil, err
	}

	lo, hi, ok := normalizeRange(op.Start, op.Stop, meta.length())
	if !ok {
		return []ScoredMember{}, nil
	}

	prefix := collectionPrefix(prefixScore, op.Key)
	members := make([]ScoredMember, 0, clamp(int(hi-lo), 0, 4096))

	var rank int64

	err = txn.scan(prefix, func(k, _ []byte) bool {
		if rank >= hi {
			return false
		}

		if rank >= lo {
			rest := bytes.TrimPrefix(k, prefix)
			if len(rest) >= 8 {
				members = append(members, ScoredMember{
					Score:  unsortableFloat(binary.BigEndian.Uint64(rest[:8])),
					Member: slices.Clone(rest[8:]),
				})
			}
		}

		rank++

		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreReadFailed, err)
	}

	return members, nil
}

func orderedScoreRemove(txn kvTxn, op Op) (Reply, error) {
	members, err := orderedScoreRange(txn, Op{Kind: OpScoreRange, Key: op.Key, Start: op.Start, Stop: op.Stop})
	if err != nil || len(members) == 0 {
		return Reply{}, err
	}

	meta, err := metaOfKind(txn, op.Key, kindSet)
	if err != nil {
		return Reply{}, err
	}

	for _, m := range members {
		if err := txn.del(scoreKey(op.Key, m.Score, m.Member)); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}

		if err := txn.del(memberKey(op.Key, m.Member)); err != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}
	}

	meta.Count -= int64(len(members))

	if err := saveMeta(txn, op.Key, meta); err != nil {
		return Reply{}, err
	}

	return Reply{Count: int64(len(members))}, nil
}
