// Package snapshot implements the persistent snapshot storage tier: a
// single versioned binary file holding every installed rule vector, plus
// an in-memory offset index for point lookups.
//
// # File Layout
//
//	magic   4 bytes  "AEGS"
//	version u16      format version (currently 1)
//	count   u32      number of records
//	index   count × (u16 id length, id bytes, u64 offset, u32 length)
//	records count × encoded rule vector (pkg/vector wire form)
//
// Offsets are absolute file positions. The index is read once at Open and
// kept in memory, so a point lookup is a single positioned read.
//
// # Atomicity
//
// Every mutation rewrites the whole file: the new contents are written to
// a temporary file in the same directory, synced, and renamed over the
// snapshot path. Readers therefore never observe partial state, and a
// crash mid-write leaves the previous snapshot intact.
package snapshot
