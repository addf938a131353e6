package recovery

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// FailureCategory is the recovery class of a failed run.
type FailureCategory int

const (
	CategoryOther FailureCategory = iota
	CategoryConnectivity
)

func (c FailureCategory) String() string {
	if c == CategoryConnectivity {
		return "connectivity"
	}
	return "other"
}

// Classifier maps an error to its recovery category.
type Classifier func(err error) FailureCategory

// connectivityHints are matched case-insensitively against each leaf message.
var connectivityHints = []string{
	"switch",
	"connection",
	"refused",
	"timed out",
	"forcibly closed",
	"unable to read data",
}

// transportSentinels are I/O and socket errors matched against each leaf.
var transportSentinels = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
	io.ErrClosedPipe,
	net.ErrClosed,
	os.ErrDeadlineExceeded,
	context.DeadlineExceeded,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
}

// Classify is the default Classifier.
func Classify(err error) FailureCategory {
	if IsConnectivityFailure(err) {
		return CategoryConnectivity
	}
	return CategoryOther
}

// IsConnectivityFailure reports whether any leaf of err looks like a broken
// device link: a socket, I/O or timeout error, or a message naming one.
func IsConnectivityFailure(err error) bool {
	for _, leaf := range Flatten(err) {
		if isTransportError(leaf) {
			return true
		}

		msg := strings.ToLower(leaf.Error())
		if strings.TrimSpace(msg) == "" {
			continue
		}
		for _, hint := range connectivityHints {
			if strings.Contains(msg, hint) {
				return true
			}
		}
	}
	return false
}

func isTransportError(err error) bool {
	switch err.(type) {
	case *net.OpError, *net.DNSError, *os.SyscallError:
		return true
	}

	if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
		return true
	}

	// Leaves already carry the whole wrap chain, so only the leaf itself is
	// compared. errors.Is would walk into cycles.
	matcher, hasIs := err.(interface{ Is(error) bool })
	for _, sentinel := range transportSentinels {
		if err == sentinel || (hasIs && matcher.Is(sentinel)) {
			return true
		}
	}
	return false
}
