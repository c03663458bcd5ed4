// Package voice implements the outgoing call client.
package voice

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
const ProviderName = "voice"

// Config holds the endpoint and credentials of the voice provider.
type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
}

// Call describes an outgoing call. Twiml is the markup executed once the
// callee answers.
type Call struct {
	To    string `json:"to" form:"to"`
	From  string `json:"from" form:"from"`
	Twiml string `json:"twiml" form:"twiml"`
}

// Fields renders the call in the provider's form field names.
func (c Call) Fields() models.Fields {
	return models.Fields{}.
		Add("To", c.To).
		Add("From", c.From).
		Add("Twiml", c.Twiml)
}

// Client places outgoing calls.
type Client struct {
	api        *transport.Client
	accountSID string
	logger     zerolog.Logger
}

// New constructs a voice client.
func New(cfg Config, logger zerolog.Logger, opts ...transport.Option) (*Client, error) {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	sid := strings.TrimSpace(cfg.AccountSID)
	auth := transport.BasicAuth{Username: sid, Password: strings.TrimSpace(cfg.AuthToken)}

	api, err := transport.New(ProviderName, cfg.BaseURL, auth, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("voice client: %w", err)
	}
	return &Client{api: api, accountSID: sid, logger: logger}, nil
}

// CreateCall places an outgoing call. Empty call fields are omitted from the
// request and left for the provider to judge.
func (c *Client) CreateCall(ctx context.Context, call Call) (models.Result, error) {
	endpoint := c.api.URL("Accounts", c.accountSID, "Calls.json")
	value, status, err := c.api.PostForm(ctx, "create_call", endpoint, call.Fields())
	if err != nil {
		return models.Result{}, err
	}
	c.logger.Debug().
		Str("provider_id", value.Get("sid").String()).
		Str("provider_status", value.Get("status").String()).
		Msg("call queued by provider")
	return models.Result{StatusCode: status, Value: value}, nil
}
