// Package factory wires the provider clients from configuration.
package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/comms-gateway/internal/config"
	"github.com/example/comms-gateway/internal/logger"
	"github.com/example/comms-gateway/internal/providers/conversation"
	"github.com/example/comms-gateway/internal/providers/email"
	"github.com/example/comms-gateway/internal/providers/sms"
	"github.com/example/comms-gateway/internal/providers/transport"
	"github.com/example/comms-gateway/internal/providers/voice"
)

// Clients groups one client per provider. Every client is safe for
// concurrent use.
type Clients struct {
	Conversation *conversation.Client
	SMS          *sms.Client
	Voice        *voice.Client
	Email        *email.Client
}

// Option customises how clients are built.
type Option func(*options)

type options struct {
	httpClient transport.HTTPClient
	observer   transport.Observer
	transfers  conversation.TransferObserver
}

// WithHTTPClient shares client across every provider instead of building one
// from the configured timeout.
func WithHTTPClient(client transport.HTTPClient) Option {
	return func(o *options) { o.httpClient = client }
}

// WithObserver reports every outbound call to o.
func WithObserver(o transport.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithTransferObserver reports media upload states to o.
func WithTransferObserver(o conversation.TransferObserver) Option {
	return func(opts *options) { opts.transfers = o }
}

// Build constructs every provider client. Any client that cannot be built
// fails the whole set.
func Build(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Clients, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: time.Duration(cfg.Timeouts.ProviderTimeoutSeconds) * time.Second}
	}

	topts := []transport.Option{
		transport.WithHTTPClient(o.httpClient),
		transport.WithBodyLimit(cfg.Providers.MaxBodyBytes),
	}
	if o.observer != nil {
		topts = append(topts, transport.WithObserver(o.observer))
	}

	twilio := cfg.Providers.Twilio
	urls := cfg.Providers.BaseURLs

	conv, err := conversation.New(conversation.Config{
		BaseURL:      urls.Conversation,
		MediaBaseURL: urls.Media,
		AccountSID:   twilio.AccountSID,
		AuthToken:    twilio.AuthToken,
	}, logger.Component(log, conversation.ProviderName),
		conversation.WithTransportOptions(topts...),
		conversation.WithChunkSize(cfg.Media.ChunkBytes),
		conversation.WithUploadSlots(cfg.Media.MaxConcurrentUploads),
		conversation.WithTransferObserver(o.transfers),
	)
	if err != nil {
		return nil, fmt.Errorf("factory: conversation client init: %w", err)
	}
	log.Info().
		Str("provider", conversation.ProviderName).
		Str("base_url", urls.Conversation).
		Str("media_base_url", urls.Media).
		Msg("provider initialised")

	smsClient, err := sms.New(sms.Config{
		BaseURL:    urls.SMS,
		AccountSID: twilio.AccountSID,
		AuthToken:  twilio.AuthToken,
	}, logger.Component(log, sms.ProviderName), topts...)
	if err != nil {
		return nil, fmt.Errorf("factory: sms client init: %w", err)
	}
	log.Info().
		Str("provider", sms.ProviderName).
		Str("base_url", urls.SMS).
		Msg("provider initialised")

	voiceClient, err := voice.New(voice.Config{
		BaseURL:    urls.Voice,
		AccountSID: twilio.AccountSID,
		AuthToken:  twilio.AuthToken,
	}, logger.Component(log, voice.ProviderName), topts...)
	if err != nil {
		return nil, fmt.Errorf("factory: voice client init: %w", err)
	}
	log.Info().
		Str("provider", voice.ProviderName).
		Str("base_url", urls.Voice).
		Msg("provider initialised")

	emailClient, err := email.New(email.Config{
		BaseURL: urls.Email,
		APIKey:  cfg.Providers.SendGrid.APIKey,
	}, logger.Component(log, email.ProviderName), topts...)
	if err != nil {
		return nil, fmt.Errorf("factory: email client init: %w", err)
	}
	log.Info().
		Str("provider", email.ProviderName).
		Str("base_url", urls.Email).
		Msg("provider initialised")

	return &Clients{
		Conversation: conv,
		SMS:          smsClient,
		Voice:        voiceClient,
		Email:        emailClient,
	}, nil
}
