package handshake

import (
	"errors"
	"fmt"
	"os"
)

// Pipes holds the two OS pipes of a handshake. The sandbox→host pipe is
// read by the host; the host→sandbox pipe is read by the sandbox.
type Pipes struct {
	// HostRecv reads what the sandbox sends.
	HostRecv *os.File
	// HostSend writes to the sandbox.
	HostSend *os.File
	// SandboxRecv is inherited by the sandbox and reads HostSend.
	SandboxRecv *os.File
	// SandboxSend is inherited by the sandbox and writes to HostRecv.
	SandboxSend *os.File
}

// NewPipes allocates two independent pipes.
func NewPipes() (*Pipes, error) {
	fromRecv, fromSend, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating sandbox-to-host pipe: %w", err)
	}
	intoRecv, intoSend, err := os.Pipe()
	if err != nil {
		fromRecv.Close()
		fromSend.Close()
		return nil, fmt.Errorf("creating host-to-sandbox pipe: %w", err)
	}
	return &Pipes{
		HostRecv:    fromRecv,
		HostSend:    intoSend,
		SandboxRecv: intoRecv,
		SandboxSend: fromSend,
	}, nil
}

// Host returns the host side of the barrier.
func (p *Pipes) Host(opts ...Option) *Channel {
	return New("host", p.HostRecv, p.HostSend, opts...)
}

// CloseSandboxEnds closes the host's copies of the ends handed to the
// sandbox. Until this is done the host never sees EOF when the sandbox dies.
func (p *Pipes) CloseSandboxEnds() error {
	return errors.Join(closeFile(&p.SandboxRecv), closeFile(&p.SandboxSend))
}

// Close closes every end still held.
func (p *Pipes) Close() error {
	return errors.Join(
		p.CloseSandboxEnds(),
		closeFile(&p.HostRecv),
		closeFile(&p.HostSend),
	)
}

func closeFile(f **os.File) error {
	if *f == nil {
		return nil
	}
	err := (*f).Close()
	*f = nil
	return err
}
