package handshake

import "sync"

// Memory returns a connected host/sandbox pair backed by Go channels.
func Memory(opts ...Option) (host, sandbox *Channel) {
	toHost := newLane()
	toSandbox := newLane()
	host = newChannel("host", &memTransport{in: toHost, out: toSandbox}, opts)
	sandbox = newChannel("sandbox", &memTransport{in: toSandbox, out: toHost}, opts)
	return host, sandbox
}

type lane struct {
	tokens chan Token
	done   chan struct{}
	once   sync.Once
}

func newLane() *lane {
	return &lane{tokens: make(chan Token, 1), done: make(chan struct{})}
}

type memTransport struct {
	in  *lane
	out *lane
}

func (m *memTransport) send(t Token) error {
	select {
	case <-m.out.done:
		return ErrPeerGone
	default:
	}
	select {
	case m.out.tokens <- t:
		return nil
	case <-m.out.done:
		return ErrPeerGone
	}
}

func (m *memTransport) recv() (Token, error) {
	select {
	case t := <-m.in.tokens:
		return t, nil
	default:
	}
	select {
	case t := <-m.in.tokens:
		return t, nil
	case <-m.in.done:
		return 0, ErrPeerGone
	}
}

func (m *memTransport) close() error {
	m.out.once.Do(func() { close(m.out.done) })
	return nil
}
