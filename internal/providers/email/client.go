// Package email implements the transactional email client.
package email

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers/transport"
)

// ProviderName identifies this client in errors, logs and metrics.
const ProviderName = "email"

// Config holds the endpoint and API key of the email provider.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client sends mail with bearer token authentication.
type Client struct {
	api    *transport.Client
	logger zerolog.Logger
}

// New constructs an email client.
func New(cfg Config, logger zerolog.Logger, opts ...transport.Option) (*Client, error) {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	auth := transport.BearerAuth{Token: strings.TrimSpace(cfg.APIKey)}
	api, err := transport.New(ProviderName, cfg.BaseURL, auth, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("email client: %w", err)
	}
	return &Client{api: api, logger: logger}, nil
}

// Send validates data and submits it. The provider normally answers 202 with
// an empty body, which comes back as a Result with an empty Value.
func (c *Client) Send(ctx context.Context, data MailData) (models.Result, error) {
	if err := data.Validate(); err != nil {
		return models.Result{}, err
	}
	value, status, err := c.api.PostJSON(ctx, "send_mail", c.api.URL("mail", "send"), data)
	if err != nil {
		return models.Result{}, err
	}
	c.logger.Debug().
		Int("recipients", data.Recipients()).
		Int("status", status).
		Msg("mail accepted by provider")
	return models.Result{StatusCode: status, Value: value}, nil
}
