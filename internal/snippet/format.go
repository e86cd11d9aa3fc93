package snippet

// Serialized snippet buffer layout, byte-exact and relocatable:
//
//	 ------------  <- 0
//	|   HEADER   |    snippet count, uint64 little-endian
//	| ---------- | <- headerSize
//	|  SNIPPETS  |    count x {childNameOffset, parentNameOffset}, uint32 LE,
//	|            |    offsets relative to buffer start
//	| ---------- | <- headerSize + count*recordSize
//	| CLASSNAMES |    {length uint16 LE, bytes[length], NUL}...
//	 ------------
//
// Offsets are relative to the buffer base rather than absolute, so the buffer
// can be stored in a cross-process cache and mapped at any address. The name
// section holds each referenced class name written per the dedup strategy in
// use; the buffer is sized assuming no dedup, so collapsed duplicates leave
// zeroed tail padding, which readers never touch (they walk only header-count
// entries).
const (
	headerSize = 8
	recordSize = 8

	// nameOverhead is the per-name cost beyond the bytes themselves:
	// a uint16 length prefix and a trailing NUL.
	nameOverhead = 3

	// CountThreshold selects the name-dedup strategy during serialization.
	// Up to this many snippets a linear index/offset array is cheaper than a
	// full table; above it the array scan degrades quadratically, so a map
	// keyed by name bytes takes over.
	CountThreshold = 16
)

func nameEntrySize(nameLen int) int {
	return nameOverhead + nameLen
}
