package jumpbridge

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Client speaks the bridge protocol over a Transport. Calls are serialized:
// each request waits for its response before the next one is sent.
type Client struct {
	transport  Transport
	serializer Serializer
	conn       net.Conn

	mu     sync.Mutex
	nextID int64
}

func NewClient(t Transport, s Serializer) *Client {
	if s == nil {
		s = MsgpackSerializer{}
	}
	return &Client{transport: t, serializer: s}
}

// DialTimeout bounds the connection retries of Dial.
const DialTimeout = 10 * time.Second

// Dial connects to a bridge server, retrying with exponential backoff while
// the server is still starting.
func Dial(ctx context.Context, network, address string, s Serializer) (*Client, error) {
	var d net.Dialer
	conn, err := backoff.Retry(ctx, func() (net.Conn, error) {
		return d.DialContext(ctx, network, address)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	c := NewClient(NewConnTransport(conn), s)
	c.conn = conn
	return c, nil
}

// Do sends req and waits for the matching response. The request ID is
// assigned by the client. Context deadlines apply only to network
// connections.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req.ID = fmt.Sprintf("req-%d", c.nextID)

	if c.conn != nil {
		deadline, _ := ctx.Deadline()
		if err := c.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	data, err := c.serializer.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := c.transport.Send(data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	raw, err := c.transport.Receive()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var resp Response
	if err := c.serializer.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %q does not match request id %q", resp.ID, req.ID)
	}
	return &resp, nil
}

// call runs req and converts an unsuccessful response into an *Error.
func (c *Client) call(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, ParseError(resp.Error)
	}
	return resp, nil
}

// Import loads a module on the server.
func (c *Client) Import(ctx context.Context, module string, autoInstall bool) error {
	_, err := c.call(ctx, &Request{Kind: RequestImport, Module: module, AutoInstall: &autoInstall})
	return err
}

// Install asks the server to install a package.
func (c *Client) Install(ctx context.Context, pkg string) error {
	_, err := c.call(ctx, &Request{Kind: RequestInstall, Package: pkg})
	return err
}

// Call invokes module.function(args...).
func (c *Client) Call(ctx context.Context, module, function string, args ...any) (Value, error) {
	resp, err := c.call(ctx, &Request{Kind: RequestCall, Module: module, Function: function, Args: args})
	if err != nil {
		return Null, err
	}
	return resp.Value(), nil
}

// Get reads the attribute at path inside module.
func (c *Client) Get(ctx context.Context, module string, path ...string) (Value, error) {
	if path == nil {
		path = []string{}
	}
	resp, err := c.call(ctx, &Request{Kind: RequestGet, Module: module, Path: path})
	if err != nil {
		return Null, err
	}
	return resp.Value(), nil
}

// CreateInstance constructs module.class(args...) and returns its handle.
func (c *Client) CreateInstance(ctx context.Context, module, class string, args ...any) (string, error) {
	resp, err := c.call(ctx, &Request{Kind: RequestCreateInstance, Module: module, Class: class, Args: args})
	if err != nil {
		return "", err
	}
	return resp.InstanceID, nil
}

// CallMethod invokes a method on a live instance.
func (c *Client) CallMethod(ctx context.Context, id, method string, args ...any) (Value, error) {
	resp, err := c.call(ctx, &Request{Kind: RequestCallMethod, InstanceID: id, Method: method, Args: args})
	if err != nil {
		return Null, err
	}
	return resp.Value(), nil
}

// Release drops a live instance.
func (c *Client) Release(ctx context.Context, id string) error {
	_, err := c.call(ctx, &Request{Kind: RequestReleaseInstance, InstanceID: id})
	return err
}

// Modules lists the modules imported on the server.
func (c *Client) Modules(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, &Request{Kind: RequestModules})
	if err != nil {
		return nil, err
	}
	items, _ := resp.Value().AsList()
	names := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.AsString(); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

func (c *Client) Close() error {
	return c.transport.Close()
}

var errorKinds = map[ErrorKind]bool{
	KindLookup:     true,
	KindNotFound:   true,
	KindImport:     true,
	KindInvocation: true,
	KindInstall:    true,
	KindRequest:    true,
}

// ParseError rebuilds an *Error from its rendered text so that errors.Is
// works on the calling side. Text without a known kind prefix becomes a
// RequestError.
func ParseError(text string) *Error {
	kind, msg, ok := strings.Cut(text, ": ")
	if !ok || !errorKinds[ErrorKind(kind)] {
		return &Error{Kind: KindRequest, Message: text}
	}
	return &Error{Kind: ErrorKind(kind), Message: msg}
}
