// Package conversation implements the chat provider client: conversations,
// their messages, and the media service that hosts message attachments.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
	"github.com/example/comms-gateway/internal/providers/transport"
)

// ProviderName identifies this client in errors, logs and metrics.
const ProviderName = "conversation"

const (
	defaultChunkBytes  = 32 * 1024
	defaultUploadSlots = 16
)

// Config holds the endpoints and credentials of the conversation provider.
type Config struct {
	BaseURL      string
	MediaBaseURL string
	AccountSID   string
	AuthToken    string
}

// Option customises the client.
type Option func(*Client)

// WithTransportOptions forwards options to both underlying transports.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, opts...)
	}
}

// WithChunkSize sets the buffer size used while streaming uploads.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkBytes = n
		}
	}
}

// WithUploadSlots bounds how many uploads may stream at once.
func WithUploadSlots(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.uploadSlots = int64(n)
		}
	}
}

// WithSourceOpener replaces os.Open for upload sources.
func WithSourceOpener(open func(path string) (io.ReadCloser, error)) Option {
	return func(c *Client) {
		if open != nil {
			c.open = open
		}
	}
}

// WithTransferObserver registers a callback for upload state changes.
func WithTransferObserver(o TransferObserver) Option {
	return func(c *Client) {
		if o != nil {
			c.transfers = o
		}
	}
}

// Client talks to the conversation API and its media service. Both share one
// credential pair.
type Client struct {
	api   *transport.Client
	media *transport.Client

	logger        zerolog.Logger
	transportOpts []transport.Option
	chunkBytes    int
	uploadSlots   int64
	slots         *semaphore.Weighted
	open          func(path string) (io.ReadCloser, error)
	transfers     TransferObserver
}

// New constructs a conversation client.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &Client{
		logger:      logger,
		chunkBytes:  defaultChunkBytes,
		uploadSlots: defaultUploadSlots,
		open:        func(path string) (io.ReadCloser, error) { return os.Open(path) },
		transfers:   nopTransferObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	auth := transport.BasicAuth{Username: strings.TrimSpace(cfg.AccountSID), Password: strings.TrimSpace(cfg.AuthToken)}

	api, err := transport.New(ProviderName, cfg.BaseURL, auth, logger, c.transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("conversation client: %w", err)
	}
	media, err := transport.New(ProviderName, cfg.MediaBaseURL, auth, logger, c.transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("conversation client: media: %w", err)
	}
	c.api = api
	c.media = media
	c.slots = semaphore.NewWeighted(c.uploadSlots)
	return c, nil
}

// CreateConversation creates a conversation from the caller's fields.
func (c *Client) CreateConversation(ctx context.Context, fields models.Fields) (models.Result, error) {
	return result(c.api.PostForm(ctx, "create_conversation", c.api.URL("Conversations"), fields))
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := requireID("conversation id", conversationID); err != nil {
		return err
	}
	return c.api.Delete(ctx, "delete_conversation", c.api.URL("Conversations", conversationID))
}

// CreateMessage posts a message into a conversation.
func (c *Client) CreateMessage(ctx context.Context, conversationID string, fields models.Fields) (models.Result, error) {
	if err := requireID("conversation id", conversationID); err != nil {
		return models.Result{}, err
	}
	return result(c.api.PostForm(ctx, "create_message", c.api.URL("Conversations", conversationID, "Messages"), fields))
}

// ListMessages returns the provider's message page for a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) (models.Result, error) {
	if err := requireID("conversation id", conversationID); err != nil {
		return models.Result{}, err
	}
	return result(c.api.Get(ctx, "list_messages", c.api.URL("Conversations", conversationID, "Messages")))
}

// DeleteMessage removes one message of a conversation.
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if err := requireID("conversation id", conversationID); err != nil {
		return err
	}
	if err := requireID("message id", messageID); err != nil {
		return err
	}
	return c.api.Delete(ctx, "delete_message", c.api.URL("Conversations", conversationID, "Messages", messageID))
}

// RetrieveMedia fetches the descriptor of a media object. The descriptor links
// to the content; the bytes themselves are not fetched.
func (c *Client) RetrieveMedia(ctx context.Context, ref models.MediaRef) (models.Result, error) {
	if err := requireID("service id", ref.ServiceID); err != nil {
		return models.Result{}, err
	}
	if err := requireID("media id", ref.MediaID); err != nil {
		return models.Result{}, err
	}
	return result(c.media.Get(ctx, "retrieve_media", c.media.URL("Services", ref.ServiceID, "Media", ref.MediaID)))
}

func result(value models.Value, status int, err error) (models.Result, error) {
	if err != nil {
		return models.Result{}, err
	}
	return models.Result{StatusCode: status, Value: value}, nil
}

var errEmptyID = errors.New("identifier is empty")

func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return providers.Invalid(fmt.Errorf("%s %s: %w", ProviderName, name, errEmptyID))
	}
	return nil
}
