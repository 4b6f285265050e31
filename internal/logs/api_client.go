package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tsencode/internal/api"
)

// ErrAPIUnavailable reports that the HTTP log stream cannot be reached.
var ErrAPIUnavailable = errors.New("log API unavailable")

// StreamClient fetches structured log events from GET /api/logs.
type StreamClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// StreamQuery mirrors the /api/logs query parameters.
type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	JobID     int64
}

// NewStreamClient returns nil when bind is empty, meaning the API is disabled.
func NewStreamClient(bind, token string) (*StreamClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	base.Path, base.RawQuery, base.Fragment = "", "", ""

	// No client timeout: follow requests block server-side until events arrive.
	return &StreamClient{base: base, token: strings.TrimSpace(token), http: &http.Client{}}, nil
}

// Fetch issues one /api/logs request.
func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (api.LogStreamResponse, error) {
	if c == nil {
		return api.LogStreamResponse{}, ErrAPIUnavailable
	}

	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if component := strings.TrimSpace(q.Component); component != "" {
		values.Set("component", component)
	}
	if q.JobID > 0 {
		values.Set("job", strconv.FormatInt(q.JobID, 10))
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/logs", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return api.LogStreamResponse{}, fmt.Errorf("api logs returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.LogStreamResponse{}, fmt.Errorf("decode log stream: %w", err)
	}
	return payload, nil
}

// IsAPIUnavailable reports whether err means the API could not be reached at
// all, as opposed to answering with an error.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAPIUnavailable) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
