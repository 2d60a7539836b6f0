package jumpbridge

// BufferPool recycles fixed-size byte slices used for framing. It is a
// buffered channel, so Get and Put never block and need no lock.
type BufferPool struct {
	pool    chan []byte
	bufSize int
}

// NewBufferPool creates a pool holding up to count buffers of bufSize bytes,
// all allocated up front.
func NewBufferPool(bufSize, count int) *BufferPool {
	bp := &BufferPool{
		pool:    make(chan []byte, count),
		bufSize: bufSize,
	}
	for i := 0; i < count; i++ {
		bp.pool <- make([]byte, bufSize)
	}
	return bp
}

// Size is the length of every buffer the pool hands out.
func (bp *BufferPool) Size() int { return bp.bufSize }

// Get takes a buffer from the pool, allocating when it is empty.
func (bp *BufferPool) Get() []byte {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		return make([]byte, bp.bufSize)
	}
}

// Put hands buf back. Foreign buffers and overflow are left to the GC.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.bufSize {
		return
	}
	select {
	case bp.pool <- buf[:bp.bufSize]:
	default:
	}
}
