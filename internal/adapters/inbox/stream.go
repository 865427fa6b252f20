package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
	sse "github.com/tmaxmax/go-sse"
)

// maxFrameBytes bounds one event on the wire. Larger frames are cut short and
// reported as malformed so the stream itself stays usable.
const maxFrameBytes = 1 << 20

var errStreamClosed = errors.New("stream closed")

// Open starts a server-sent events stream. The returned connection ends when
// ctx is cancelled, the server closes the stream or Close is called.
func (a Adapter) Open(ctx context.Context, session domain.Session) (ports.PushConnection, error) {
	endpoint, err := buildAPIURL(a.API.BaseURL, a.API.StreamPath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+session.Token())

	resp, err := a.streamClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open stream: %w", statusError(resp.StatusCode, body))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	return newStreamConnection(resp.Body), nil
}

type streamResult struct {
	event sse.Event
	err   error
}

type streamConnection struct {
	body      io.ReadCloser
	results   chan streamResult
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newStreamConnection(body io.ReadCloser) *streamConnection {
	c := &streamConnection{
		body:    body,
		results: make(chan streamResult),
		closed:  make(chan struct{}),
	}
	go c.read()
	return c
}

func (c *streamConnection) read() {
	defer close(c.results)

	frames := newFrameLimitReader(c.body, maxFrameBytes)
	config := &sse.ReadConfig{MaxEventSize: 2 * maxFrameBytes}
	for event, err := range sse.Read(frames, config) {
		select {
		case c.results <- streamResult{event: event, err: err}:
		case <-c.closed:
			return
		}
		if err != nil {
			return
		}
	}
}

// Next blocks until the next notification frame arrives.
func (c *streamConnection) Next() (domain.Notification, error) {
	for {
		var result streamResult
		var ok bool
		select {
		case result, ok = <-c.results:
		case <-c.closed:
			return domain.Notification{}, fmt.Errorf("read stream: %w", errStreamClosed)
		}

		switch {
		case !ok:
			return domain.Notification{}, fmt.Errorf("read stream: %w", io.ErrUnexpectedEOF)
		case result.err != nil:
			return domain.Notification{}, fmt.Errorf("read stream: %w", result.err)
		case result.event.Type == oversizedEventType:
			return domain.Notification{}, fmt.Errorf("%w: frame exceeds %d bytes", domain.ErrMalformedEvent, maxFrameBytes)
		case result.event.Type == string(domain.KindHeartbeat):
			return domain.Notification{Kind: domain.KindHeartbeat}, nil
		case strings.TrimSpace(result.event.Data) == "":
			continue
		}

		return decodeNotification([]byte(result.event.Data))
	}
}

func (c *streamConnection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.body.Close()
	})
	return c.closeErr
}
