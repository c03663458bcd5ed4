package transport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/example/comms-gateway/internal/providers"
)

// Authentication schemes.
const (
	SchemeBasic  = "basic"
	SchemeBearer = "bearer"
)

// Authenticator attaches credentials to a single outbound request.
type Authenticator interface {
	Apply(req *http.Request)
	Scheme() string
	Validate() error
}

// BasicAuth authenticates with an identity/secret pair, as used by the
// conversation, SMS and voice providers.
type BasicAuth struct {
	Username string
	Password string
}

// Apply sets the Authorization header.
func (a BasicAuth) Apply(req *http.Request) { req.SetBasicAuth(a.Username, a.Password) }

// Scheme returns SchemeBasic.
func (BasicAuth) Scheme() string { return SchemeBasic }

// Validate requires both halves of the pair.
func (a BasicAuth) Validate() error {
	if strings.TrimSpace(a.Username) == "" || strings.TrimSpace(a.Password) == "" {
		return fmt.Errorf("%w: basic auth requires identity and secret", providers.ErrMissingCredentials)
	}
	return nil
}

// BearerAuth authenticates with an API token, as used by the email provider.
type BearerAuth struct {
	Token string
}

// Apply sets the Authorization header.
func (a BearerAuth) Apply(req *http.Request) { req.Header.Set("Authorization", "Bearer "+a.Token) }

// Scheme returns SchemeBearer.
func (BearerAuth) Scheme() string { return SchemeBearer }

// Validate requires a token.
func (a BearerAuth) Validate() error {
	if strings.TrimSpace(a.Token) == "" {
		return fmt.Errorf("%w: bearer auth requires a token", providers.ErrMissingCredentials)
	}
	return nil
}
