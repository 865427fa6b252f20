package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/bnema/notifications-feed-cli/internal/ports"
)

const maxResponseBytes = 1 << 20

var ErrUnauthorized = errors.New("session rejected by server")

type API struct {
	BaseURL      string
	InboxPath    string
	StreamPath   string
	ApprovePath  string
	MarkReadPath string
}

func DefaultAPI(baseURL string) API {
	return API{
		BaseURL:      baseURL,
		InboxPath:    "/notifications/inbox",
		StreamPath:   "/notifications/sse",
		ApprovePath:  "/notifications/team-invite/{projectId}/approve",
		MarkReadPath: "/notifications/mark_read",
	}
}

// Adapter talks to the notifications HTTP API. Unary calls are bounded by
// RequestTimeout unless the caller's context already has a deadline; the
// push stream is only bounded by its context.
type Adapter struct {
	API            API
	HTTPClient     *http.Client
	StreamClient   *http.Client
	RequestTimeout time.Duration
}

var (
	_ ports.SnapshotSource = Adapter{}
	_ ports.PushStream     = Adapter{}
	_ ports.ActionAPI      = Adapter{}
)

type snapshotResponse struct {
	Notifications []wireNotification `json:"notifications"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (a Adapter) FetchSnapshot(ctx context.Context, session domain.Session) ([]domain.Notification, error) {
	endpoint, err := buildAPIURL(a.API.BaseURL, a.API.InboxPath)
	if err != nil {
		return nil, err
	}

	body, err := a.do(ctx, http.MethodGet, endpoint, session)
	if err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}

	var payload snapshotResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode inbox response: %w", err)
	}

	notifications := make([]domain.Notification, 0, len(payload.Notifications))
	for _, wire := range payload.Notifications {
		notifications = append(notifications, wire.toDomain())
	}

	return notifications, nil
}

func (a Adapter) ApproveInvite(ctx context.Context, session domain.Session, projectID string) (string, error) {
	if strings.TrimSpace(projectID) == "" {
		return "", errors.New("project id is required")
	}

	path := strings.ReplaceAll(a.API.ApprovePath, "{projectId}", url.PathEscape(projectID))
	endpoint, err := buildAPIURL(a.API.BaseURL, path)
	if err != nil {
		return "", err
	}

	body, err := a.do(ctx, http.MethodPost, endpoint, session)
	if err != nil {
		return "", err
	}

	var payload messageResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return "", fmt.Errorf("decode approve response: %w", err)
		}
	}

	return payload.Message, nil
}

func (a Adapter) MarkAllRead(ctx context.Context, session domain.Session) error {
	endpoint, err := buildAPIURL(a.API.BaseURL, a.API.MarkReadPath)
	if err != nil {
		return err
	}

	if _, err := a.do(ctx, http.MethodPost, endpoint, session); err != nil {
		return err
	}

	return nil
}

// do sends one authorized request and returns the body of a 2xx response.
// Error payloads of the form {"error": "..."} become *domain.ActionError.
func (a Adapter) do(ctx context.Context, method, endpoint string, session domain.Session) ([]byte, error) {
	requestCtx, cancel := a.requestContext(ctx)
	defer cancel()

	var reqBody io.Reader
	if method == http.MethodPost {
		reqBody = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.Token())
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(resp.StatusCode, body)
	}

	return body, nil
}

func statusError(statusCode int, body []byte) error {
	var payload messageResponse
	_ = json.Unmarshal(body, &payload)

	var cause error = fmt.Errorf("status %d: %s", statusCode, strings.TrimSpace(string(body)))
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		cause = fmt.Errorf("%w: status %d", ErrUnauthorized, statusCode)
	}

	if strings.TrimSpace(payload.Error) != "" {
		return &domain.ActionError{Message: strings.TrimSpace(payload.Error), Err: cause}
	}

	return cause
}

func (a Adapter) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a Adapter) streamClient() *http.Client {
	if a.StreamClient != nil {
		return a.StreamClient
	}
	return http.DefaultClient
}

func (a Adapter) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := a.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint, err := parsed.Parse(strings.TrimRight(parsed.Path, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
