// Package hpos implements the handrec pose container: a chunked,
// self-describing binary file with parallel columnar fields.
//
// Every flush of the writer pipeline becomes one chunk, framed by a
// record count, payload length, and CRC-32C checksum. Chunks are
// independent and self-contained, so a recording interrupted by an
// abrupt process kill is still readable up to its last complete chunk.
//
// The format carries a single top-level version tag and no per-chunk
// schema: field shapes are fixed for the lifetime of a file.
package hpos
