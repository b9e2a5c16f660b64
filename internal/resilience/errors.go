package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/invoice-cli/pkg/docintel"
)

// IsTransient reports whether an error is worth retrying: a retryable
// extraction API status, a network timeout, or a dropped connection.
// Everything else, including 4xx API rejections, is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *docintel.APIError
	if errors.As(err, &apiErr) {
		return IsTransientHTTPStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Some transport failures only surface as wrapped text.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
