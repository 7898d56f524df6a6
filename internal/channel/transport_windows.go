//go:build windows

package channel

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\`

// Grants full access to the pipe owner only.
const pipeSecurityDescriptor = "D:P(A;;GA;;;OW)"

type pipeTransport struct{}

// NewTransport returns the named pipe transport.
func NewTransport() Transport {
	return pipeTransport{}
}

func (pipeTransport) Address(name string) string {
	return pipePrefix + name
}

func (pipeTransport) Listen(address string) (net.Listener, error) {
	ln, err := winio.ListenPipe(address, &winio.PipeConfig{
		SecurityDescriptor: pipeSecurityDescriptor,
		InputBufferSize:    readChunkSize,
		OutputBufferSize:   readChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on pipe %s: %w", address, err)
	}
	return ln, nil
}

func (pipeTransport) Dial(ctx context.Context, address string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, address)
}
