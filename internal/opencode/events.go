package opencode

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const eventBuffer = 64

// Events subscribes to the server event stream. The returned channel yields
// decoded events until ctx ends or the stream breaks, then closes. Setup
// failures are returned before any goroutine starts.
func (c *Client) Events(ctx context.Context) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/event"), nil)
	if err != nil {
		return nil, fmt.Errorf("opencode: creating event request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req) //nolint:gosec // URL is built from the configured base URL
	if err != nil {
		return nil, fmt.Errorf("opencode: connecting to event stream: %w", err)
	}
	if err := checkStatus(resp, http.MethodGet, "/event"); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}

	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		defer func() { _ = resp.Body.Close() }()
		c.readEvents(ctx, resp, out)
	}()
	return out, nil
}

// readEvents parses SSE frames. Multiple data lines in one frame are joined
// by newlines; frames without data and undecodable payloads are skipped.
func (c *Client) readEvents(ctx context.Context, resp *http.Response, out chan<- Event) {
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxBodySize)

	var data []string
	flush := func() bool {
		if len(data) == 0 {
			return true
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			c.log.Debug("skipping undecodable event", zap.Error(err))
			return true
		}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if !flush() {
				return
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		c.log.Warn("event stream ended", zap.Error(err))
	}
}
