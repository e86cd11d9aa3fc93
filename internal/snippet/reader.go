package snippet

import (
	"encoding/binary"

	"github.com/class-verify/pkg/errors"
)

// Reader walks a serialized snippet buffer. The walk is stateless over a
// fixed buffer: pairs are addressed by position and every accessor can be
// called any number of times.
type Reader struct {
	buf   []byte
	count int
}

// NewReader validates the buffer header and record section bounds.
func NewReader(buf []byte) (*Reader, error) {
	if len(buf) < headerSize {
		return nil, errors.Wrap(errors.CodeInternalError, "snippet buffer shorter than header", nil)
	}
	count := binary.LittleEndian.Uint64(buf)
	if count == 0 {
		return nil, errors.Wrap(errors.CodeInternalError, "snippet buffer holds no snippets", nil)
	}
	// Compare by division: multiplying an untrusted count by recordSize can
	// wrap around and slip past the bounds check.
	if count > uint64((len(buf)-headerSize)/recordSize) {
		return nil, errors.Wrap(errors.CodeInternalError, "snippet buffer truncated", nil)
	}
	return &Reader{buf: buf, count: int(count)}, nil
}

// Count returns the number of snippet pairs in the buffer.
func (r *Reader) Count() int {
	return r.count
}

// Pair resolves the i-th snippet to its (childName, parentName) byte views.
// The views alias the underlying buffer and stay valid for its lifetime.
func (r *Reader) Pair(i int) (childName, parentName []byte, err error) {
	if i < 0 || i >= r.count {
		return nil, nil, errors.Wrap(errors.CodeInternalError, "snippet index out of range", nil)
	}
	recordOffset := headerSize + i*recordSize
	childName, err = r.name(binary.LittleEndian.Uint32(r.buf[recordOffset:]))
	if err != nil {
		return nil, nil, err
	}
	parentName, err = r.name(binary.LittleEndian.Uint32(r.buf[recordOffset+4:]))
	if err != nil {
		return nil, nil, err
	}
	return childName, parentName, nil
}

func (r *Reader) name(offset uint32) ([]byte, error) {
	if offset == 0 {
		return nil, errors.Wrap(errors.CodeInternalError, "snippet name offset unresolved", nil)
	}
	end := uint64(offset) + 2
	if end > uint64(len(r.buf)) {
		return nil, errors.Wrap(errors.CodeInternalError, "snippet name offset out of bounds", nil)
	}
	length := binary.LittleEndian.Uint16(r.buf[offset:])
	if end+uint64(length)+1 > uint64(len(r.buf)) {
		return nil, errors.Wrap(errors.CodeInternalError, "snippet name entry truncated", nil)
	}
	return r.buf[offset+2 : uint32(end)+uint32(length)], nil
}
