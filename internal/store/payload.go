package store

import "sync/atomic"

// Payload is a reference-counted message body. Per spec.md §9, the core
// represents a body either as a single contiguous buffer ("entire") or as
// a vector of page-sized chunks ("chunked") behind one shared handle type;
// callers of Send never need to know which variant they hold.
type Payload interface {
	// Bytes materializes the full payload as one contiguous slice. For a
	// chunked payload this copies the chunks into a new slice.
	Bytes() []byte
	// Len reports the payload length in bytes.
	Len() int
	// Retain takes a fresh reference, for handing a copy to another queue.
	Retain() Payload
	// Release drops a reference.
	Release()
}

// entireCore is the shared backing for one contiguous-buffer payload.
type entireCore struct {
	data []byte
	refs atomic.Int32
}

// entirePayload is the single-buffer Payload variant.
type entirePayload struct {
	core *entireCore
}

// NewEntirePayload wraps data as a reference-counted, single-buffer
// payload with one reference. data is not copied; callers must not mutate
// it afterward.
func NewEntirePayload(data []byte) Payload {
	c := &entireCore{data: data}
	c.refs.Store(1)
	return &entirePayload{core: c}
}

func (p *entirePayload) Bytes() []byte { return p.core.data }
func (p *entirePayload) Len() int      { return len(p.core.data) }

func (p *entirePayload) Retain() Payload {
	p.core.refs.Add(1)
	return &entirePayload{core: p.core}
}

func (p *entirePayload) Release() {
	p.core.refs.Add(-1)
}

// chunkedCore is the shared backing for a chunked payload: a vector of
// fixed ChunkSize buffers plus the length used in the final chunk.
type chunkedCore struct {
	chunks  [][]byte
	lastLen int
	refs    atomic.Int32
}

// chunkedPayload is the page-chunk-vector Payload variant, used for large
// bodies so a single oversized allocation is never required.
type chunkedPayload struct {
	core *chunkedCore
}

// NewChunkedPayload copies data into pooled ChunkSize chunks.
func NewChunkedPayload(data []byte) Payload {
	if len(data) == 0 {
		return NewEntirePayload(nil)
	}
	n := (len(data) + ChunkSize - 1) / ChunkSize
	chunks := make([][]byte, 0, n)
	remaining := data
	for len(remaining) > 0 {
		buf := getChunk()
		k := copy(buf, remaining)
		chunks = append(chunks, buf)
		remaining = remaining[k:]
	}
	lastLen := len(data) - (n-1)*ChunkSize
	c := &chunkedCore{chunks: chunks, lastLen: lastLen}
	c.refs.Store(1)
	return &chunkedPayload{core: c}
}

func (p *chunkedPayload) Len() int {
	if len(p.core.chunks) == 0 {
		return 0
	}
	return (len(p.core.chunks)-1)*ChunkSize + p.core.lastLen
}

func (p *chunkedPayload) Bytes() []byte {
	out := make([]byte, 0, p.Len())
	for i, c := range p.core.chunks {
		if i == len(p.core.chunks)-1 {
			out = append(out, c[:p.core.lastLen]...)
		} else {
			out = append(out, c...)
		}
	}
	return out
}

func (p *chunkedPayload) Retain() Payload {
	p.core.refs.Add(1)
	return &chunkedPayload{core: p.core}
}

func (p *chunkedPayload) Release() {
	if p.core.refs.Add(-1) == 0 {
		for _, c := range p.core.chunks {
			putChunk(c)
		}
	}
}
