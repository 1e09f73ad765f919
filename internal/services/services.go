// package services defines thin clients for the HTTP APIs the upload flow talks to
//
// Data Dragon (champion data + art), Dropbox (OAuth2 + file upload)
package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/champbox/internal/shared"
)

// maxBodySize caps how much of any response is buffered in memory.
var maxBodySize = 32 << 20

// readBody drains resp and returns its bytes, failing with [shared.ErrTransport] on non-2xx responses
// and on bodies larger than [maxBodySize].
func readBody(resp *http.Response, what string) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBodySize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s response: %v", shared.ErrTransport, what, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: %s response exceeds %d bytes", shared.ErrTransport, what, maxBodySize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, fmt.Errorf("%w: %s returned status %d", shared.ErrTransport, what, resp.StatusCode)
	}

	return body, nil
}

// transportError wraps a failed round trip so callers can match it with [errors.Is].
func transportError(what string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %s request failed: %v", shared.ErrTransport, what, urlErr.Err)
	}
	return fmt.Errorf("%w: %s request failed: %v", shared.ErrTransport, what, err)
}
