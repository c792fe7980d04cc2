package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrUnauthorized marks a rejected password (HTTP 401 or websocket close
// 1008). Callers use it to prompt for re-entry instead of retrying.
var ErrUnauthorized = errors.New("unauthorized: password rejected by server")

// FailureKind classifies a transport failure for user-facing messages. The
// manual refresh path and first-run server validation must tell DNS
// failures, refused connections, timeouts and bad passwords apart.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureAuth
	FailureDNS
	FailureRefused
	FailureTimeout
)

// Classify maps a transport error to its failure kind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}

	if errors.Is(err, ErrUnauthorized) {
		return FailureAuth
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	return FailureOther
}

// Describe returns a short user-facing explanation of a transport error.
func Describe(err error) string {
	switch Classify(err) {
	case FailureAuth:
		return "the server rejected the password"
	case FailureDNS:
		return "the server hostname could not be resolved"
	case FailureRefused:
		return "the connection was refused, is the server running?"
	case FailureTimeout:
		return "the server did not answer in time"
	default:
		return fmt.Sprintf("sync failed: %v", err)
	}
}
