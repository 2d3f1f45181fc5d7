package runtime

import "sync/atomic"

// Channel is the boxed channel behind the source-level channel builtins.
// Send and receive genuinely block the calling goroutine; both unblock
// when the runtime's cancellation token trips. Closure is signalled
// through a separate done channel so a send racing Close returns
// ErrChannelClosed instead of panicking on a closed Go channel.
type Channel struct {
	ch     chan *Handle
	done   chan struct{}
	closed atomic.Bool
}

// NewChannel boxes a fresh channel with the given buffer capacity.
func NewChannel(capacity int) *Handle {
	c := &Channel{ch: make(chan *Handle, capacity), done: make(chan struct{})}
	return Box(Value{Tag: TagChannel, Channel: c})
}

// Send delivers v, blocking until a receiver or buffer space is ready.
func (c *Channel) Send(tok *CancelToken, v *Handle) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	select {
	case c.ch <- v:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-tok.Done():
		return ErrCancelled
	}
}

// Recv blocks until a value arrives. Values buffered before closure
// still drain; only an empty closed channel reports ErrChannelClosed.
func (c *Channel) Recv(tok *CancelToken) (*Handle, error) {
	select {
	case v := <-c.ch:
		return v, nil
	default:
	}
	select {
	case v := <-c.ch:
		return v, nil
	case <-c.done:
		select {
		case v := <-c.ch:
			return v, nil
		default:
			return nil, ErrChannelClosed
		}
	case <-tok.Done():
		return nil, ErrCancelled
	}
}

// Close marks the channel closed. Pending receivers drain the buffer and
// then observe ErrChannelClosed; pending senders unblock with the same.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrChannelClosed
	}
	close(c.done)
	return nil
}
