package jumpbridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxMessageSize caps a single framed payload.
const MaxMessageSize = 64 << 20

// ErrMessageTooLarge is returned for frames above MaxMessageSize.
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

type flusher interface{ Flush() error }

// FramedTransport sends each message as a 4-byte big-endian length followed
// by the payload. Send and Receive may be used from different goroutines;
// concurrent Sends are serialized.
type FramedTransport struct {
	reader io.ReadCloser
	writer io.WriteCloser
	shared bool

	writeMu    sync.Mutex
	bufferPool *BufferPool
	closeOnce  sync.Once
	closeErr   error
}

func NewFramedTransport(reader io.ReadCloser, writer io.WriteCloser) *FramedTransport {
	return &FramedTransport{
		reader:     reader,
		writer:     writer,
		bufferPool: NewBufferPool(8192, 10),
	}
}

// NewConnTransport frames messages over a single bidirectional connection.
func NewConnTransport(conn net.Conn) *FramedTransport {
	t := NewFramedTransport(conn, conn)
	t.shared = true
	return t
}

func (t *FramedTransport) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("send %d bytes: %w", len(data), ErrMessageTooLarge)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	header := t.bufferPool.Get()[:4]
	defer t.bufferPool.Put(header)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	if _, err := t.writer.Write(header); err != nil {
		return err
	}
	if _, err := t.writer.Write(data); err != nil {
		return err
	}
	return t.flush()
}

func (t *FramedTransport) Receive() ([]byte, error) {
	header := t.bufferPool.Get()[:4]
	if _, err := io.ReadFull(t.reader, header); err != nil {
		t.bufferPool.Put(header)
		return nil, err
	}
	length := binary.BigEndian.Uint32(header)
	t.bufferPool.Put(header)

	if length > MaxMessageSize {
		return nil, fmt.Errorf("receive %d bytes: %w", length, ErrMessageTooLarge)
	}

	// Small frames are read into a pooled buffer and copied out.
	if int(length) <= t.bufferPool.Size() {
		buf := t.bufferPool.Get()[:length]
		defer t.bufferPool.Put(buf)
		if _, err := io.ReadFull(t.reader, buf); err != nil {
			return nil, unexpectedEOF(err)
		}
		out := make([]byte, length)
		copy(out, buf)
		return out, nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(t.reader, data); err != nil {
		return nil, unexpectedEOF(err)
	}
	return data, nil
}

// A stream that ends inside a frame is never a clean close.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (t *FramedTransport) Flush() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.flush()
}

func (t *FramedTransport) flush() error {
	if f, ok := t.writer.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (t *FramedTransport) Close() error {
	t.closeOnce.Do(func() {
		if t.shared {
			t.closeErr = t.reader.Close()
			return
		}
		t.closeErr = errors.Join(t.reader.Close(), t.writer.Close())
	})
	return t.closeErr
}
