package jumpbridge

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeClient serves b on one end of an in-memory pipe and returns a client
// attached to the other end.
func pipeClient(t *testing.T, b *Bridge, s Serializer) *Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	srv := NewServer(b, s, discardLogger())

	done := make(chan error, 1)
	go func() {
		done <- srv.ServeTransport(context.Background(), NewConnTransport(serverConn))
	}()

	client := NewClient(NewConnTransport(clientConn), s)
	t.Cleanup(func() {
		client.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop after client closed")
		}
	})
	return client
}

func serializers() []Serializer {
	return []Serializer{MsgpackSerializer{}, JSONSerializer{}, ProtoSerializer{}}
}

func TestClientServer(t *testing.T) {
	for _, s := range serializers() {
		t.Run(s.Name(), func(t *testing.T) {
			client := pipeClient(t, newTestBridge(t), s)
			ctx := context.Background()

			require.NoError(t, client.Import(ctx, "calc", false))

			pi, err := client.Get(ctx, "calc", "pi")
			require.NoError(t, err)
			f, _ := pi.AsFloat()
			assert.InDelta(t, 3.14159, f, 1e-9)

			sum, err := client.Call(ctx, "calc", "add", 1, 2, 3.5)
			require.NoError(t, err)
			f, _ = sum.AsFloat()
			assert.Equal(t, 6.5, f)

			deep, err := client.Get(ctx, "calc", "consts", "nested", "deep")
			require.NoError(t, err)
			assert.Equal(t, Str("yes"), deep)

			echoed, err := client.Call(ctx, "calc", "echo", "x", true, nil)
			require.NoError(t, err)
			if diff := cmp.Diff([]any{"x", true, nil}, echoed.Interface()); diff != "" {
				t.Errorf("echo mismatch (-want +got):\n%s", diff)
			}

			fn, err := client.Get(ctx, "calc", "wait")
			require.NoError(t, err)
			tag, ok := fn.AsTagged()
			require.True(t, ok)
			assert.Equal(t, TagFunction, tag.Type)
			assert.True(t, tag.Async)

			id, err := client.CreateInstance(ctx, "calc", "Counter", 41)
			require.NoError(t, err)
			n, err := client.CallMethod(ctx, id, "incr")
			require.NoError(t, err)
			f, _ = n.AsFloat()
			assert.Equal(t, 42.0, f)
			require.NoError(t, client.Release(ctx, id))

			names, err := client.Modules(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"calc"}, names)
		})
	}
}

func TestClientErrors(t *testing.T) {
	for _, s := range serializers() {
		t.Run(s.Name(), func(t *testing.T) {
			client := pipeClient(t, newTestBridge(t), s)
			ctx := context.Background()

			_, err := client.Get(ctx, "calc", "pi")
			assert.ErrorIs(t, err, ErrLookup)

			err = client.Import(ctx, "nope", false)
			assert.ErrorIs(t, err, ErrImport)

			require.NoError(t, client.Import(ctx, "calc", false))
			_, err = client.Call(ctx, "calc", "div", 1, 0)
			assert.ErrorIs(t, err, ErrInvocation)
			assert.Contains(t, err.Error(), "division by zero")

			err = client.Release(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			err = client.Install(ctx, "anything")
			assert.ErrorIs(t, err, ErrInstall)

			// The stream stays usable after failures.
			v, err := client.Get(ctx, "calc", "trig", "right_angle")
			require.NoError(t, err)
			f, _ := v.AsFloat()
			assert.Equal(t, 90.0, f)
		})
	}
}

func TestServerAnswersMalformedRequests(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	srv := NewServer(newTestBridge(t), JSONSerializer{}, discardLogger())
	go srv.ServeTransport(context.Background(), NewConnTransport(serverConn))

	tr := NewConnTransport(clientConn)
	defer tr.Close()

	require.NoError(t, tr.Send([]byte("{not json")))
	raw, err := tr.Receive()
	require.NoError(t, err)

	var resp Response
	require.NoError(t, JSONSerializer{}.Unmarshal(raw, &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "RequestError: malformed request")

	// Still serving.
	require.NoError(t, tr.Send([]byte(`{"id":"7","kind":"modules"}`)))
	raw, err = tr.Receive()
	require.NoError(t, err)
	require.NoError(t, JSONSerializer{}.Unmarshal(raw, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "7", resp.ID)
}

func TestServeUnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "bridge.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := NewServer(newTestBridge(t), nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	client, err := Dial(ctx, "unix", sock, nil)
	require.NoError(t, err)

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	require.NoError(t, client.Import(callCtx, "calc", false))
	v, err := client.Call(callCtx, "calc", "add", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, Num(4), v)
	require.NoError(t, client.Close())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestDialGivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := Dial(ctx, "unix", filepath.Join(t.TempDir(), "absent.sock"), nil)
	assert.Error(t, err)
}

func TestNewSerializer(t *testing.T) {
	for name, want := range map[string]string{"": "msgpack", "msgpack": "msgpack", "json": "json", "proto": "protobuf", "protobuf": "protobuf"} {
		s, err := NewSerializer(name)
		require.NoError(t, err)
		assert.Equal(t, want, s.Name())
	}
	_, err := NewSerializer("xml")
	assert.Error(t, err)
}

func TestProtoSerializerRejectsNonObjects(t *testing.T) {
	_, err := ProtoSerializer{}.Marshal([]int{1, 2})
	assert.Error(t, err)

	var req Request
	err = ProtoSerializer{}.Unmarshal([]byte{0xff, 0xff}, &req)
	assert.Error(t, err)
}
