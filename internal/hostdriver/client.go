package hostdriver

import (
	"io"
	"time"

	"github.com/bigbass1997/veritas/internal/curated"
	"github.com/bigbass1997/veritas/internal/mode"
	"github.com/bigbass1997/veritas/internal/protocol"
	"github.com/bigbass1997/veritas/internal/replaystate"
)

// deadliner is implemented by transports that support a per-operation
// deadline (net.Conn-shaped transports). The real serial transport this
// module ships (serialenum, backed by github.com/daedaluz/goserial) applies
// its own read timeout internally, set once at Open time, so it never
// implements this interface; a plain io.ReadWriter (including the
// in-process pipes used in tests) simply gets no per-call timeout either —
// on the device side there is never a timeout by design, and on the host
// side §5's per-operation timeout is satisfied by whichever of these two
// mechanisms the transport actually offers.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Client is the host-side half of the wire protocol: send exactly one
// framed request, read exactly one framed response, per the device's
// "responds to every command with exactly one response" contract.
type Client struct {
	rw      io.ReadWriter
	timeout time.Duration
}

// NewClient wraps rw (an open serial connection, or any ReadWriter in
// tests) with the per-operation timeout the host applies to every call.
func NewClient(rw io.ReadWriter, timeout time.Duration) *Client {
	return &Client{rw: rw, timeout: timeout}
}

func (c *Client) call(req protocol.Request) (protocol.Response, error) {
	if d, ok := c.rw.(deadliner); ok && c.timeout > 0 {
		if err := d.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, curated.CategoryErrorf(curated.Transport, "hostdriver: set deadline: %v", err)
		}
	}

	if err := protocol.WriteFrame(c.rw, protocol.EncodeRequest(req)); err != nil {
		return nil, err
	}
	payload, err := protocol.ReadFrame(c.rw)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(payload)
}

// Ping sends Ping and reports an error unless the device replies Pong.
func (c *Client) Ping() error {
	resp, err := c.call(protocol.Ping{})
	if err != nil {
		return err
	}
	if _, ok := resp.(protocol.Pong); !ok {
		return curated.CategoryErrorf(curated.Protocol, "hostdriver: Ping got %T, want Pong", resp)
	}
	return nil
}

// okCall sends req and reports an error unless the device replies Ok.
func (c *Client) okCall(req protocol.Request) error {
	resp, err := c.call(req)
	if err != nil {
		return err
	}
	if e, ok := resp.(protocol.Err); ok {
		return curated.CategoryErrorf(curated.Protocol, "hostdriver: %T rejected: %s", req, e.Message)
	}
	if _, ok := resp.(protocol.Ok); !ok {
		return curated.CategoryErrorf(curated.Protocol, "hostdriver: %T got %T, want Ok", req, resp)
	}
	return nil
}

func (c *Client) SetReplayMode(m mode.Mode) error {
	return c.okCall(protocol.SetReplayMode{Mode: m})
}

func (c *Client) SetReplayLength(n uint64) error {
	return c.okCall(protocol.SetReplayLength{Length: n})
}

func (c *Client) SetLatchFilter(us uint32) error {
	return c.okCall(protocol.SetLatchFilter{Microseconds: us})
}

func (c *Client) UseInitialReset(flag bool) error {
	return c.okCall(protocol.UseInitialReset{Flag: flag})
}

func (c *Client) ProvideTransitions(ts []replaystate.Transition) error {
	return c.okCall(protocol.ProvideTransitions{Transitions: ts})
}

// ProvideInput sends one chunk of a system's input stream and returns the
// device's buffer status, the direct backpressure signal the prefill loop
// sizes its next chunk from.
func (c *Client) ProvideInput(sys protocol.System, data []byte) (protocol.BufferStatus, error) {
	resp, err := c.call(protocol.ProvideInput{System: sys, Data: data})
	if err != nil {
		return protocol.BufferStatus{}, err
	}
	if e, ok := resp.(protocol.Err); ok {
		return protocol.BufferStatus{}, curated.CategoryErrorf(curated.Protocol, "hostdriver: ProvideInput rejected: %s", e.Message)
	}
	status, ok := resp.(protocol.BufferStatus)
	if !ok {
		return protocol.BufferStatus{}, curated.CategoryErrorf(curated.Protocol, "hostdriver: ProvideInput got %T, want BufferStatus", resp)
	}
	return status, nil
}

// GetStatus asks the device for its short status string.
func (c *Client) GetStatus() (string, error) {
	resp, err := c.call(protocol.GetStatus{})
	if err != nil {
		return "", err
	}
	ds, ok := resp.(protocol.DeviceStatus)
	if !ok {
		return "", curated.CategoryErrorf(curated.Protocol, "hostdriver: GetStatus got %T, want DeviceStatus", resp)
	}
	return ds.Text, nil
}
