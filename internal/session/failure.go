package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

const (
	// NetworkErrorMessage is shown when an enrichment failed below the
	// HTTP layer.
	NetworkErrorMessage = "A network error occurred. This may be due to browser security (CORS) policies blocking the request from this domain. The standard solution is to use a backend proxy."

	// UnexpectedErrorMessage is shown when a failure carries no message.
	UnexpectedErrorMessage = "An unexpected error occurred during enrichment."
)

// FailureMessage turns an enrichment error into the text stored on the
// lead.
func FailureMessage(err error) string {
	if err == nil {
		return UnexpectedErrorMessage
	}
	if isNetworkError(err) {
		return NetworkErrorMessage
	}
	if msg := strings.TrimSpace(cause(err).Error()); msg != "" {
		return msg
	}
	return UnexpectedErrorMessage
}

func isNetworkError(err error) bool {
	// context errors satisfy net.Error but are not transport failures.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// cause strips the outer category of a "%w: %w" error so the lead shows
// what actually went wrong.
func cause(err error) error {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := multi.Unwrap(); len(errs) > 0 && errs[len(errs)-1] != nil {
			return errs[len(errs)-1]
		}
	}
	return err
}
