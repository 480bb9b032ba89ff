package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Distinct failure categories the pipeline and the manual trigger report.
// All are matchable with errors.Is.
var (
	ErrUnauthorized     = errors.New("feed URL rejected the credentials")
	ErrNotFound         = errors.New("feed URL not found")
	ErrServer           = errors.New("feed server error")
	ErrMalformedContent = errors.New("response is not a calendar feed")
	ErrNetwork          = errors.New("feed unreachable")
)

const (
	fetchTimeout   = 30 * time.Second
	calendarMarker = "BEGIN:VCALENDAR"
)

// Client fetches the raw roster feed. It is the only component that touches
// the network; everything downstream works on the returned body.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: fetchTimeout},
		userAgent:  userAgent,
	}
}

// Fetch performs an authenticated GET against the configured roster URL and
// returns the body. Username may be empty for unauthenticated feeds.
func (c *Client) Fetch(ctx context.Context, url, username, password string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/calendar")
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to body checks
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: HTTP %d", ErrNotFound, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: HTTP %d", ErrServer, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %s", ErrNetwork, err)
	}

	body := string(data)
	if !strings.Contains(body, calendarMarker) {
		contentType := resp.Header.Get("Content-Type")
		return "", fmt.Errorf("%w: missing %s marker (content type %q)", ErrMalformedContent, calendarMarker, contentType)
	}

	return body, nil
}
