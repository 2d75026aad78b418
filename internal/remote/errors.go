package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Kind classifies why a connect attempt failed.
type Kind int

const (
	Unexpected Kind = iota
	AuthRejected
	Unreachable
	ProtocolError
	Timeout
)

func (k Kind) String() string {
	switch k {
	case AuthRejected:
		return "authentication rejected"
	case Unreachable:
		return "host unreachable"
	case ProtocolError:
		return "protocol error"
	case Timeout:
		return "timed out"
	default:
		return "unexpected error"
	}
}

// ConnectError is returned by Dialer.Dial.
type ConnectError struct {
	Kind Kind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %s: %v", e.Addr, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or Unexpected when err is not a
// ConnectError.
func KindOf(err error) Kind {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Unexpected
}

// classify maps a dial or handshake failure onto a Kind. ctx is the
// attempt's bounded context.
func classify(ctx context.Context, handshake bool, err error) Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	if ctx.Err() != nil {
		return Unexpected
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	if strings.Contains(err.Error(), "i/o timeout") {
		return Timeout
	}
	// x/crypto/ssh reports rejected credentials only through the message.
	if strings.Contains(err.Error(), "unable to authenticate") {
		return AuthRejected
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return Unreachable
	}
	if !handshake {
		var oe *net.OpError
		var de *net.DNSError
		if errors.As(err, &oe) || errors.As(err, &de) {
			return Unreachable
		}
		return Unexpected
	}
	return ProtocolError
}
