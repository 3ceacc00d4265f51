package httpclient

import "fmt"

// UpstreamError represents an error returned by an upstream service.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// TruncatedBody returns at most n bytes of the upstream body for logging.
func (e *UpstreamError) TruncatedBody(n int) string {
	if len(e.Body) <= n {
		return string(e.Body)
	}
	return string(e.Body[:n]) + "..."
}
