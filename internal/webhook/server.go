package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/a9lim/shannon/internal/bus"
	"github.com/a9lim/shannon/internal/config"
)

// Publisher is the subset of *bus.Bus the webhook server needs.
type Publisher interface {
	Publish(kind bus.Kind, payload any) bus.Event
}

// Server is the C8 webhook HTTP ingress: one POST route per configured
// endpoint, each independently validated and normalized.
type Server struct {
	cfg    config.WebhooksConfig
	bus    Publisher
	engine *gin.Engine
	http   *http.Server
}

// New builds a Server from the webhooks config section. It does not bind
// a socket until Start is called.
func New(cfg config.WebhooksConfig, publisher Publisher) *Server {
	for _, ep := range cfg.Endpoints {
		if ep.Secret == "" {
			slog.Warn("webhook: endpoint has no secret configured, all requests will be rejected",
				"endpoint", endpointLabel(ep))
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not found")
	})

	s := &Server{cfg: cfg, bus: publisher, engine: engine}
	for _, ep := range cfg.Endpoints {
		engine.POST(normalizePath(ep.Path), s.handler(ep))
	}
	return s
}

// Start binds the configured address and serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Bind, fmt.Sprintf("%d", s.cfg.Port))
	s.http = &http.Server{Addr: addr, Handler: s.engine}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webhook: listen %s: %w", addr, err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("webhook: server error", "error", err)
		}
	}()
	slog.Info("webhook: server started", "bind", s.cfg.Bind, "port", s.cfg.Port)
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook: shutdown: %w", err)
	}
	slog.Info("webhook: server stopped")
	return nil
}

func (s *Server) handler(ep config.WebhookEndpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, "Bad JSON")
			return
		}

		var payload map[string]any
		if err := jsonUnmarshalLenient(body, &payload); err != nil {
			c.String(http.StatusBadRequest, "Bad JSON")
			return
		}

		if !s.validate(ep, c.Request, body) {
			c.String(http.StatusUnauthorized, "Invalid Signature")
			return
		}

		event := s.normalize(ep, c.Request, body, payload)

		s.bus.Publish(bus.KindWebhookReceived, bus.WebhookReceived{
			Source:        event.Source,
			EventType:     event.EventType,
			Summary:       event.Summary,
			Payload:       event.Payload,
			TargetChannel: event.TargetChannel,
		})
		slog.Info("webhook: received", "source", event.Source, "event_type", event.EventType, "channel", event.TargetChannel)

		c.String(http.StatusOK, "OK")
	}
}

func (s *Server) validate(ep config.WebhookEndpoint, r *http.Request, body []byte) bool {
	name := strings.ToLower(ep.Name)
	switch {
	case strings.Contains(name, "github"):
		return validateGitHubSignature(body, r.Header.Get("X-Hub-Signature-256"), ep.Secret)
	case strings.Contains(name, "sentry"):
		return validateSentrySignature(body, r.Header.Get("Sentry-Hook-Signature"), ep.Secret)
	default:
		provided := r.Header.Get("X-Webhook-Secret")
		if provided == "" {
			provided = r.Header.Get("Authorization")
		}
		return validateGenericSecret(provided, ep.Secret)
	}
}

func (s *Server) normalize(ep config.WebhookEndpoint, r *http.Request, body []byte, payload map[string]any) Event {
	name := strings.ToLower(ep.Name)
	switch {
	case strings.Contains(name, "github"):
		eventType := r.Header.Get("X-GitHub-Event")
		if eventType == "" {
			eventType = "unknown"
		}
		return normalizeGitHubEvent(eventType, body, ep.Channel)
	case strings.Contains(name, "sentry"):
		return normalizeSentryEvent(payload, ep.Channel)
	default:
		return normalizeGenericEvent(payload, ep.Channel)
	}
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func endpointLabel(ep config.WebhookEndpoint) string {
	if ep.Name != "" {
		return ep.Name
	}
	return ep.Path
}
