package snippet

import (
	"encoding/binary"

	"github.com/class-verify/pkg/errors"
)

// Serialize packs the store's snippets and their referenced class names into a
// relocatable buffer suitable for the shared cache.
//
// names is the verification pass's class-name table; snippet indices resolve
// into it. maxBytes caps the buffer allocation (zero means uncapped);
// exceeding it is an insufficient-memory error. An index outside the name
// table is an internal error.
//
// Serializing an empty store returns (nil, nil); callers are expected to
// treat that as "nothing to store".
func Serialize(store *Store, names [][]byte, maxBytes int) ([]byte, error) {
	snippets := store.Snippets()
	count := len(snippets)
	if count == 0 {
		return nil, nil
	}

	// Size the buffer pessimistically: every reference pays for its name even
	// when dedup later collapses it.
	size := headerSize + count*recordSize
	for _, sn := range snippets {
		for _, idx := range [2]int{sn.ChildNameIndex, sn.ParentNameIndex} {
			if idx < 0 || idx >= len(names) {
				return nil, errors.Wrap(errors.CodeInternalError, "snippet references unknown class name index", nil)
			}
			size += nameEntrySize(len(names[idx]))
		}
	}
	if maxBytes > 0 && size > maxBytes {
		return nil, errors.Wrap(errors.CodeInsufficientMemory, "snippet buffer exceeds allocation limit", nil)
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf, uint64(count))

	w := &nameWriter{buf: buf, next: headerSize + count*recordSize}

	var lookup nameLookup
	switch {
	case count == 1:
		lookup = directLookup{}
	case count <= CountThreshold:
		lookup = &arrayLookup{}
	default:
		lookup = mapLookup{offsets: make(map[string]uint32)}
	}

	recordOffset := headerSize
	for _, sn := range snippets {
		childOffset, err := lookup.offsetFor(w, names, sn.ChildNameIndex)
		if err != nil {
			return nil, err
		}
		parentOffset, err := lookup.offsetFor(w, names, sn.ParentNameIndex)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(buf[recordOffset:], childOffset)
		binary.LittleEndian.PutUint32(buf[recordOffset+4:], parentOffset)
		recordOffset += recordSize
	}

	return buf, nil
}

// nameWriter appends length-prefixed class names to the buffer's name section.
type nameWriter struct {
	buf  []byte
	next int
}

func (w *nameWriter) write(name []byte) (uint32, error) {
	entry := nameEntrySize(len(name))
	if w.next+entry > len(w.buf) {
		return 0, errors.Wrap(errors.CodeInternalError, "snippet name section overflow", nil)
	}
	offset := uint32(w.next)
	binary.LittleEndian.PutUint16(w.buf[w.next:], uint16(len(name)))
	copy(w.buf[w.next+2:], name)
	// Trailing NUL already zeroed by allocation.
	w.next += entry
	return offset, nil
}

// nameLookup resolves a class-name index to the offset where the name lives in
// the buffer, writing the name on first encounter.
type nameLookup interface {
	offsetFor(w *nameWriter, names [][]byte, idx int) (uint32, error)
}

// directLookup never deduplicates. Used for single-snippet buffers where no
// index can repeat profitably.
type directLookup struct{}

func (directLookup) offsetFor(w *nameWriter, names [][]byte, idx int) (uint32, error) {
	return w.write(names[idx])
}

// arrayLookup maps name indices to offsets through a small fixed array
// scanned linearly. Two slots per snippet is the worst case: every child and
// parent index distinct.
type arrayLookup struct {
	entries [CountThreshold * 2]struct {
		nameIndex int
		offset    uint32
		used      bool
	}
}

func (l *arrayLookup) offsetFor(w *nameWriter, names [][]byte, idx int) (uint32, error) {
	slot := -1
	for i := range l.entries {
		if !l.entries[i].used {
			slot = i
			break
		}
		if l.entries[i].nameIndex == idx {
			return l.entries[i].offset, nil
		}
	}
	if slot < 0 {
		// Cannot happen while CountThreshold gates this path; checked rather
		// than assumed.
		return 0, errors.Wrap(errors.CodeInternalError, "snippet name mapping array overflow", nil)
	}
	offset, err := w.write(names[idx])
	if err != nil {
		return 0, err
	}
	l.entries[slot].nameIndex = idx
	l.entries[slot].offset = offset
	l.entries[slot].used = true
	return offset, nil
}

// mapLookup deduplicates by name bytes, so distinct indices holding identical
// names also collapse to one stored copy.
type mapLookup struct {
	offsets map[string]uint32
}

func (l mapLookup) offsetFor(w *nameWriter, names [][]byte, idx int) (uint32, error) {
	name := names[idx]
	if offset, ok := l.offsets[string(name)]; ok {
		return offset, nil
	}
	offset, err := w.write(name)
	if err != nil {
		return 0, err
	}
	l.offsets[string(name)] = offset
	return offset, nil
}
