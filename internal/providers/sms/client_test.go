package sms

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
	"github.com/example/comms-gateway/internal/providers/transport"
)

const (
	testBaseURL     = "https://api.sms.test"
	testMessagesURL = testBaseURL + "/2010-04-01/Accounts/AC123/Messages.json"
)

func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	c, err := New(Config{BaseURL: testBaseURL, AccountSID: "AC123", AuthToken: "token"}, zerolog.Nop(),
		transport.WithHTTPClient(&http.Client{Transport: mock}))
	require.NoError(t, err)
	return c, mock
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{BaseURL: testBaseURL, AuthToken: "token"}, zerolog.Nop())
	require.ErrorIs(t, err, providers.ErrMissingCredentials)
}

func TestCreateMessagePostsFormWithBasicAuth(t *testing.T) {
	c, mock := newMockedClient(t)
	mock.RegisterResponder(http.MethodPost, testMessagesURL,
		func(req *http.Request) (*http.Response, error) {
			user, pass, ok := req.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "AC123", user)
			assert.Equal(t, "token", pass)
			assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))

			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			assert.Equal(t, "To=%2B15550001111&From=%2B15550002222&Body=hi", string(raw))
			return httpmock.NewStringResponse(http.StatusCreated, `{"sid":"SM1","status":"queued"}`), nil
		})

	fields := models.Fields{}.Add("To", "+15550001111").Add("From", "+15550002222").Add("Body", "hi")
	res, err := c.CreateMessage(context.Background(), fields)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.JSONEq(t, `{"sid":"SM1","status":"queued"}`, res.Value.String())
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestCreateMessageRejected(t *testing.T) {
	c, mock := newMockedClient(t)
	mock.RegisterResponder(http.MethodPost, testMessagesURL,
		httpmock.NewStringResponder(http.StatusBadRequest, `{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))

	_, err := c.CreateMessage(context.Background(), models.Fields{}.Add("To", "nope"))
	require.ErrorIs(t, err, providers.ErrProviderRejected)

	pe, ok := providers.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, 21211, pe.Code)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, "sms", pe.Provider)
}
