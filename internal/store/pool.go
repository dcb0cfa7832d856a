package store

import "sync"

// ChunkSize is the fixed chunk size used by the chunked Payload variant —
// analogous to a page, the unit the source's chunked message body used.
const ChunkSize = 4096

// chunkPool provides pooled page-sized buffers so large chunked payloads
// don't allocate a fresh slice per chunk on the hot send path. Adapted from
// go-ublk's internal/queue/pool.go size-bucketed *[]byte sync.Pool pattern,
// collapsed to the single chunk size this package needs.
var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, ChunkSize)
		return &b
	},
}

// getChunk returns a buffer of length ChunkSize from the pool; a reused
// buffer still holds its previous contents.
func getChunk() []byte {
	return (*chunkPool.Get().(*[]byte))[:ChunkSize]
}

// putChunk returns buf to the pool. Only full-capacity chunks are pooled.
func putChunk(buf []byte) {
	if cap(buf) != ChunkSize {
		return
	}
	buf = buf[:ChunkSize]
	chunkPool.Put(&buf)
}
