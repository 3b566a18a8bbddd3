// Package netx holds small HTTP helpers for moving file content.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTooLarge is returned by DownloadTo when the body exceeds the limit.
var ErrTooLarge = errors.New("response body exceeds limit")

// DefaultClient is used when DownloadTo is given a nil client.
var DefaultClient = &http.Client{Timeout: 2 * time.Minute}

// DownloadTo streams the body of a GET request to url into w. At most limit
// bytes are copied; limit <= 0 means no limit. It returns the number of bytes
// written.
func DownloadTo(ctx context.Context, client *http.Client, url string, w io.Writer, limit int64) (int64, error) {
	if client == nil {
		client = DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	if limit <= 0 {
		return io.Copy(w, resp.Body)
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return n, nil
}
