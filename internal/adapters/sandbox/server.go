package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/notifications-feed-cli/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	inboxLimit       = 50
	defaultHeartbeat = 15 * time.Second
	defaultTokenTTL  = 24 * time.Hour
	shutdownTimeout  = 5 * time.Second
)

var ErrInvalidNotification = errors.New("invalid notification")

type Options struct {
	Secret    string
	Heartbeat time.Duration
	TokenTTL  time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

// Server is a local stand-in for the notifications backend: it serves the
// inbox, the event stream and the action endpoints the client consumes, and
// lets a developer publish notifications and mint tokens.
type Server struct {
	router    *gin.Engine
	store     *Store
	hub       *Hub
	secret    string
	heartbeat time.Duration
	tokenTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

func NewServer(store *Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	tokenTTL := opts.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(logger))

	s := &Server{
		router:    router,
		store:     store,
		hub:       NewHub(),
		secret:    opts.Secret,
		heartbeat: heartbeat,
		tokenTTL:  tokenTTL,
		logger:    logger,
		now:       now,
		newID:     uuid.NewString,
	}
	s.setupRoutes()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until ctx is cancelled, then closes open streams and shuts
// the listener down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve sandbox: %w", err)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown sandbox: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	notifications := s.router.Group("/notifications")
	notifications.Use(requireBearer(s.secret))
	{
		notifications.GET("/inbox", s.handleInbox)
		notifications.GET("/sse", s.handleStream)
		notifications.POST("/team-invite/:projectId/approve", s.handleApprove)
		notifications.POST("/mark_read", s.handleMarkRead)
	}

	sandbox := s.router.Group("/sandbox")
	{
		sandbox.POST("/token", s.handleToken)
		sandbox.POST("/notifications", s.handlePublish)
	}
}

type PublishRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Type        string `json:"type"`
	Message     string `json:"message" binding:"required"`
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
}

// Publish stores a notification for its recipient and pushes it to every
// open stream of that user.
func (s *Server) Publish(ctx context.Context, req PublishRequest) (domain.Notification, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.Notification{}, fmt.Errorf("%w: user id is required", ErrInvalidNotification)
	}

	kind := domain.Kind(strings.ToLower(strings.TrimSpace(req.Type)))
	if kind == "" {
		kind = domain.KindInfo
	}
	if !kind.Valid() || kind == domain.KindHeartbeat {
		return domain.Notification{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidNotification, req.Type)
	}

	n := domain.Notification{
		ID:           domain.NotificationID(s.newID()),
		Kind:         kind,
		Message:      req.Message,
		TargetUserID: userID,
		Timestamp:    s.now().UTC(),
	}
	if kind == domain.KindTeamInvite {
		projectID := strings.TrimSpace(req.ProjectID)
		if projectID == "" {
			return domain.Notification{}, fmt.Errorf("%w: team invites need a project id", ErrInvalidNotification)
		}
		n.Action = &domain.ActionContext{ProjectID: projectID, ProjectName: strings.TrimSpace(req.ProjectName)}
	}

	if err := s.store.Insert(ctx, n); err != nil {
		return domain.Notification{}, err
	}
	delivered := s.hub.Publish(n)
	s.logger.Info("notification published", "user_id", userID, "type", string(kind), "streams", delivered)

	return n, nil
}

func (s *Server) handleInbox(c *gin.Context) {
	list, err := s.store.ListRecent(c.Request.Context(), c.GetString(userIDKey), inboxLimit)
	if err != nil {
		s.logger.Error("list inbox failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	payload := make([]wirePayload, 0, len(list))
	for _, n := range list {
		payload = append(payload, toWire(n))
	}
	c.JSON(http.StatusOK, gin.H{"notifications": payload})
}

func (s *Server) handleStream(c *gin.Context) {
	userID := c.GetString(userIDKey)
	events, unsubscribe := s.hub.Subscribe(userID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	s.logger.Debug("stream opened", "user_id", userID)
	defer s.logger.Debug("stream closed", "user_id", userID)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case n, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("message", toWire(n))
			return true
		case <-heartbeat.C:
			c.SSEvent(string(domain.KindHeartbeat), "ping")
			return true
		}
	})
}

func (s *Server) handleApprove(c *gin.Context) {
	userID := c.GetString(userIDKey)
	projectID := strings.TrimSpace(c.Param("projectId"))

	projectName, err := s.store.AcceptInvite(c.Request.Context(), userID, projectID, s.now())
	if errors.Is(err, ErrInviteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invite not found or already used"})
		return
	}
	if err != nil {
		s.logger.Error("approve invite failed", "user_id", userID, "project_id", projectID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if projectName == "" {
		projectName = "Project " + projectID
	}
	s.logger.Info("invite approved", "user_id", userID, "project_id", projectID)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("You joined %s", projectName)})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	updated, err := s.store.MarkAllRead(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		s.logger.Error("mark read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) handleToken(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	token, err := IssueToken(s.secret, req.UserID, s.tokenTTL, s.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": strings.TrimSpace(req.UserID)})
}

func (s *Server) handlePublish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	n, err := s.Publish(c.Request.Context(), req)
	if errors.Is(err, ErrInvalidNotification) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("publish failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusCreated, toWire(n))
}

// wirePayload is the JSON shape of a notification on the inbox endpoint and
// in stream frames.
type wirePayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsRead      bool   `json:"isRead"`
	Timestamp   string `json:"timestamp"`
	ProjectID   string `json:"projectId,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
	UserID      string `json:"UserID"`
}

func toWire(n domain.Notification) wirePayload {
	payload := wirePayload{
		ID:        string(n.ID),
		Type:      string(n.Kind),
		Message:   n.Message,
		IsRead:    n.IsRead,
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:    n.TargetUserID,
	}
	if n.Action != nil {
		payload.ProjectID = n.Action.ProjectID
		payload.ProjectName = n.Action.ProjectName
	}
	return payload
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}
