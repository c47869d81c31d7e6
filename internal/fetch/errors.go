package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/kol-feed-api/internal/types"
)

// maxMessageLen bounds how much of an upstream error body ends up in messages
const maxMessageLen = 256

// UpstreamError is returned when an upstream is unreachable or answers with a non-2xx status.
type UpstreamError struct {
	Upstream types.Upstream
	// StatusCode is zero when no response was received
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %s", e.Upstream, e.Message)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Upstream, e.StatusCode, e.Message)
}

// IsUpstream reports whether err is, or wraps, an UpstreamError
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// upstreamMessage extracts a human readable message from an error body.
// JSON bodies with a "message" or "error" member use that member, anything
// else falls back to the trimmed body text.
func upstreamMessage(body []byte) string {
	var envelope struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return truncate(envelope.Message)
		}
		var s string
		if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &s) == nil && s != "" {
			return truncate(s)
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response body"
	}
	return truncate(text)
}

func truncate(s string) string {
	if len(s) > maxMessageLen {
		return s[:maxMessageLen]
	}
	return s
}
