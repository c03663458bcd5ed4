// Package gateway is the HTTP surface of the service. Each route maps to one
// provider client operation and writes one response envelope.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers/email"
	"github.com/example/comms-gateway/internal/providers/voice"
)

const (
	defaultBodyLimit    = "10M"
	defaultVoiceMessage = "Thank you for calling. Goodbye."
	readHeaderTimeout   = 10 * time.Second
)

// ConversationService is the chat and media provider.
type ConversationService interface {
	CreateConversation(ctx context.Context, fields models.Fields) (models.Result, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	CreateMessage(ctx context.Context, conversationID string, fields models.Fields) (models.Result, error)
	ListMessages(ctx context.Context, conversationID string) (models.Result, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
	UploadMedia(ctx context.Context, serviceID string, handle models.MediaHandle) (models.Result, error)
	RetrieveMedia(ctx context.Context, ref models.MediaRef) (models.Result, error)
}

// SMSService sends text messages.
type SMSService interface {
	CreateMessage(ctx context.Context, fields models.Fields) (models.Result, error)
}

// VoiceService places outgoing calls.
type VoiceService interface {
	CreateCall(ctx context.Context, call voice.Call) (models.Result, error)
}

// EmailService sends transactional mail.
type EmailService interface {
	Send(ctx context.Context, data email.MailData) (models.Result, error)
}

// WebhookPublisher forwards inbound callbacks downstream.
type WebhookPublisher interface {
	Publish(ctx context.Context, event models.WebhookEvent) error
}

// ReadinessChecker reports whether a dependency can currently serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Observer receives per-request and per-webhook measurements.
type Observer interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	ObserveWebhook(source, outcome string)
}

// Deps are the collaborators of a Server. The four services are required;
// everything else is optional.
type Deps struct {
	Conversation ConversationService
	SMS          SMSService
	Voice        VoiceService
	Email        EmailService

	Publisher      WebhookPublisher
	Broker         ReadinessChecker
	Observer       Observer
	MetricsHandler http.Handler

	VoiceMessage string
	BodyLimit    string
	Logger       zerolog.Logger
}

// Server routes inbound requests to the provider clients.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
}

// ErrMissingService is returned by New when a provider service is nil.
var ErrMissingService = errors.New("gateway: provider service is required")

// New builds the echo instance, installs middleware and registers routes.
func New(deps Deps) (*Server, error) {
	if deps.Conversation == nil || deps.SMS == nil || deps.Voice == nil || deps.Email == nil {
		return nil, ErrMissingService
	}
	if reflect.ValueOf(deps.Logger).IsZero() {
		deps.Logger = zerolog.Nop()
	}
	if deps.VoiceMessage == "" {
		deps.VoiceMessage = defaultVoiceMessage
	}
	if deps.BodyLimit == "" {
		deps.BodyLimit = defaultBodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = readHeaderTimeout

	s := &Server{echo: e, deps: deps, logger: deps.Logger, now: time.Now}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: newID}))
	e.Use(s.requestLogger())
	e.Use(middleware.BodyLimit(deps.BodyLimit))

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/chat", s.createConversation)
	e.DELETE("/chat/delete/:conversation_id", s.deleteConversation)
	e.POST("/chat/message/:conversation_id", s.createMessage)
	e.GET("/chat/list/:conversation_id", s.listMessages)
	e.DELETE("/chat/message/delete/:conversation_id/:message_id", s.deleteMessage)

	e.POST("/media/upload/:service_id", s.uploadMedia)
	e.GET("/media/retrieve/:service_id/:media_id", s.retrieveMedia)

	e.POST("/sms", s.sendSMS)
	e.POST("/voice/call", s.createCall)
	e.POST("/email", s.sendEmail)

	e.POST("/chat/receive", s.receiveWebhook(models.WebhookSourceChat))
	e.POST("/sms/receive", s.receiveWebhook(models.WebhookSourceSMS))
	e.POST("/voice", s.receiveVoiceWebhook)

	e.GET("/healthz", s.healthz)
	if s.deps.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(s.deps.MetricsHandler))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("gateway listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
