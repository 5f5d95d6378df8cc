// Package handshake implements the two-phase barrier that synchronizes the
// host with a sandbox while its namespaces are being set up.
//
// Each side owns one direction for writing. Tokens carry no payload beyond
// "proceed"; every token must be awaited exactly once before the next one is
// signalled on the same direction.
package handshake

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Token is a single-byte barrier token.
type Token byte

const (
	// Ready is sent by the sandbox once its namespaces and private mount
	// tree exist and it is waiting for its identity mapping.
	Ready Token = '1'
	// Resume is sent by the host once the identity mapping is in place.
	Resume Token = 'a'
)

func (t Token) String() string {
	switch t {
	case Ready:
		return "ready"
	case Resume:
		return "resume"
	default:
		return fmt.Sprintf("token(%#x)", byte(t))
	}
}

var (
	// ErrPeerGone is returned when the other side closed its end or exited.
	ErrPeerGone = errors.New("handshake peer gone")
	// ErrUnexpectedToken is a protocol violation: the peer sent a token
	// other than the one awaited.
	ErrUnexpectedToken = errors.New("unexpected handshake token")
)

// Direction tells whether an event was a send or a receive.
type Direction int

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

// Event describes one completed barrier operation.
type Event struct {
	Side      string
	Direction Direction
	Token     Token
	At        time.Time
}

// Observer is notified after every completed Signal and Await.
type Observer func(Event)

// Option configures a Channel.
type Option func(*Channel)

// WithObserver attaches an observer to the channel.
func WithObserver(o Observer) Option {
	return func(c *Channel) {
		c.observer = o
	}
}

type transport interface {
	send(Token) error
	recv() (Token, error)
	close() error
}

// Channel is one side of the barrier.
type Channel struct {
	side     string
	t        transport
	observer Observer
	now      func() time.Time
}

func newChannel(side string, t transport, opts []Option) *Channel {
	c := &Channel{side: side, t: t, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New returns a channel side that reads tokens from r and writes them to w.
// r and w are normally the two ends of two different OS pipes.
func New(side string, r io.Reader, w io.Writer, opts ...Option) *Channel {
	return newChannel(side, &streamTransport{r: r, w: w}, opts)
}

// Side returns the name the channel was created with.
func (c *Channel) Side() string {
	return c.side
}

// Signal releases the peer blocked in Await.
func (c *Channel) Signal(t Token) error {
	if err := c.t.send(t); err != nil {
		return fmt.Errorf("%s: signalling %s: %w", c.side, t, err)
	}
	c.notify(Sent, t)
	return nil
}

// Await blocks until the peer signals. It fails with ErrPeerGone if the
// peer went away and with ErrUnexpectedToken if it signalled anything other
// than want.
func (c *Channel) Await(want Token) error {
	got, err := c.t.recv()
	if err != nil {
		return fmt.Errorf("%s: awaiting %s: %w", c.side, want, err)
	}
	if got != want {
		return fmt.Errorf("%s: awaiting %s, got %s: %w", c.side, want, got, ErrUnexpectedToken)
	}
	c.notify(Received, got)
	return nil
}

// Close closes the channel's write direction so the peer observes
// ErrPeerGone.
func (c *Channel) Close() error {
	return c.t.close()
}

func (c *Channel) notify(d Direction, t Token) {
	if c.observer == nil {
		return
	}
	c.observer(Event{Side: c.side, Direction: d, Token: t, At: c.now()})
}

type streamTransport struct {
	r io.Reader
	w io.Writer
}

func (s *streamTransport) send(t Token) error {
	n, err := s.w.Write([]byte{byte(t)})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerGone, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: short write", ErrPeerGone)
	}
	return nil
}

func (s *streamTransport) recv() (Token, error) {
	var buf [1]byte
	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrPeerGone
		}
		return 0, fmt.Errorf("%w: %v", ErrPeerGone, err)
	}
	return Token(buf[0]), nil
}

func (s *streamTransport) close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
