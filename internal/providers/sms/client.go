// Package sms implements the SMS provider client.
package sms

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
const ProviderName = "sms"

const apiVersion = "2010-04-01"

// Config holds the endpoint and credentials of the SMS provider.
type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
}

// Client sends SMS messages through the account's Messages resource.
type Client struct {
	api        *transport.Client
	accountSID string
	logger     zerolog.Logger
}

// New constructs an SMS client.
func New(cfg Config, logger zerolog.Logger, opts ...transport.Option) (*Client, error) {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	sid := strings.TrimSpace(cfg.AccountSID)
	auth := transport.BasicAuth{Username: sid, Password: strings.TrimSpace(cfg.AuthToken)}

	api, err := transport.New(ProviderName, cfg.BaseURL, auth, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("sms client: %w", err)
	}
	return &Client{api: api, accountSID: sid, logger: logger}, nil
}

// CreateMessage sends one SMS. Fields such as To, From and Body are passed to
// the provider as given.
func (c *Client) CreateMessage(ctx context.Context, fields models.Fields) (models.Result, error) {
	endpoint := c.api.URL(apiVersion, "Accounts", c.accountSID, "Messages.json")
	value, status, err := c.api.PostForm(ctx, "create_message", endpoint, fields)
	if err != nil {
		return models.Result{}, err
	}
	c.logger.Debug().
		Str("provider_id", value.Get("sid").String()).
		Str("provider_status", value.Get("status").String()).
		Msg("sms accepted by provider")
	return models.Result{StatusCode: status, Value: value}, nil
}
