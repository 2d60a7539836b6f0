package jumpbridge

// Serializer converts protocol messages to and from bytes.
// The default implementation uses MessagePack.
type Serializer interface {
	// Name identifies the encoding ("msgpack", "json", "protobuf").
	Name() string

	// Marshal encodes a Go value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes bytes into a Go value.
	Unmarshal(data []byte, v any) error
}

// Transport moves whole messages between the two ends of a connection.
// Implementations own the framing; callers see one payload per call.
type Transport interface {
	// Send transmits one message.
	Send(data []byte) error

	// Receive blocks until a complete message has been read.
	// It returns io.EOF once the peer has closed the stream cleanly.
	Receive() ([]byte, error)

	// Close releases the underlying streams.
	Close() error

	// Flush pushes out any buffered bytes.
	Flush() error
}
