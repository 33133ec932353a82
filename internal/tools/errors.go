package tools

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/solpilot/solpilot/internal/drift"
	"github.com/solpilot/solpilot/internal/jupiter"
	"github.com/solpilot/solpilot/internal/schema"
)

// ClassifyError maps an infrastructure fault to the tagged errorType the
// conversation contract expects. Used both by tool bodies that choose to
// degrade gracefully and by the dispatcher when Execute returns an error.
func ClassifyError(err error) schema.ErrorType {
	switch {
	case err == nil:
		return schema.ErrUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return schema.ErrTimeout
	case errors.Is(err, jupiter.ErrRateLimited):
		return schema.ErrRateLimit
	case errors.Is(err, drift.ErrNoAccount):
		return schema.ErrNoAccount
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return schema.ErrTimeout
		}
		return schema.ErrNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection reset"):
		return schema.ErrNetwork
	case strings.Contains(msg, "rate limit"):
		return schema.ErrRateLimit
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return schema.ErrTimeout
	case strings.Contains(msg, "invalid address"):
		return schema.ErrInvalidAddress
	}
	return schema.ErrUnknown
}

// FailureFromError renders an infrastructure fault as a tagged tool result.
func FailureFromError(err error) string {
	return schema.Failure(ClassifyError(err), err.Error())
}
