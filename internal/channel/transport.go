package channel

import (
	"context"
	"net"
	"strings"

	"github.com/google/uuid"
)

// Transport creates the private local endpoint the engine connects back to.
// Each platform provides one implementation through NewTransport.
type Transport interface {
	// Address maps a channel name to the endpoint address handed to the
	// engine on its command line.
	Address(name string) string
	// Listen binds the endpoint. It fails if the address is in use.
	Listen(address string) (net.Listener, error)
	// Dial connects to an endpoint as the engine would.
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// NameLength is the length of a channel name.
const NameLength = 24

// NewName returns a fresh random channel name of NameLength lowercase hex
// characters.
func NewName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:NameLength]
}
