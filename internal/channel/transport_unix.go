//go:build !windows

package channel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

const socketFile = "ctl.sock"

type socketTransport struct {
	dir string
}

// NewTransport returns the unix domain socket transport rooted in the
// system temp directory.
func NewTransport() Transport {
	return NewSocketTransport(os.TempDir())
}

// NewSocketTransport places each channel in its own directory under dir.
func NewSocketTransport(dir string) Transport {
	return socketTransport{dir: dir}
}

func (t socketTransport) Address(name string) string {
	return filepath.Join(t.dir, "intiface-"+name, socketFile)
}

// Listen creates the socket's directory with owner-only access and binds
// inside it. The directory is removed when the listener closes.
func (t socketTransport) Listen(address string) (net.Listener, error) {
	dir := filepath.Dir(address)

	// Names are random per launch, so anything at the path is a leftover
	// from a crashed run. Removal fails for a directory we do not own.
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket directory %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory %s: %w", dir, err)
	}

	ln, err := net.Listen("unix", address)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	if err := os.Chmod(address, 0o600); err != nil {
		ln.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to restrict socket permissions: %w", err)
	}
	return &dirListener{Listener: ln, dir: dir}, nil
}

func (t socketTransport) Dial(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", address)
}

// dirListener removes the socket directory after closing the socket.
type dirListener struct {
	net.Listener
	dir string
}

func (l *dirListener) Close() error {
	err := l.Listener.Close()
	if rmErr := os.RemoveAll(l.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
