package conversation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []TransferState
	bytes  int64
}

func (r *stateRecorder) ObserveTransfer(state TransferState, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	r.bytes = bytes
}

func (r *stateRecorder) snapshot() []TransferState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransferState(nil), r.states...)
}

// syntheticSource yields size bytes without holding them and records the
// largest read it was asked to serve.
type syntheticSource struct {
	remaining int64
	maxRead   int
	failAfter int64
	served    int64
	closed    bool
}

func (s *syntheticSource) Read(p []byte) (int, error) {
	if len(p) > s.maxRead {
		s.maxRead = len(p)
	}
	if s.failAfter > 0 && s.served >= s.failAfter {
		return 0, errors.New("disk read error")
	}
	if s.remaining == 0 {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > s.remaining {
		n = s.remaining
	}
	for i := int64(0); i < n; i++ {
		p[i] = byte('a' + (s.served+i)%26)
	}
	s.remaining -= n
	s.served += n
	return int(n), nil
}

func (s *syntheticSource) Close() error {
	s.closed = true
	return nil
}

type receivedUpload struct {
	field    string
	filename string
	ctype    string
	bytes    int64
	user     string
	pass     string
}

func newMediaServer(t *testing.T, got *receivedUpload) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/Services/IS123/Media", r.URL.Path)
		got.user, got.pass, _ = r.BasicAuth()

		mr, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if !assert.NoError(t, err) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			got.field = part.FormName()
			got.filename = part.FileName()
			got.ctype = part.Header.Get("Content-Type")
			n, err := io.Copy(io.Discard, part)
			assert.NoError(t, err)
			got.bytes += n
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sid":"ME1","service_sid":"IS123","filename":"`+got.filename+`"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newServerClient(t *testing.T, srvURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:      srvURL + "/v1",
		MediaBaseURL: srvURL + "/v1",
		AccountSID:   "AC123",
		AuthToken:    "token",
	}, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return c
}

func TestUploadMediaStreamsFileFromDisk(t *testing.T) {
	var got receivedUpload
	srv := newMediaServer(t, &got)
	recorder := &stateRecorder{}
	c := newServerClient(t, srv.URL, WithTransferObserver(recorder))

	path := filepath.Join(t.TempDir(), "photo.jpg")
	payload := make([]byte, 200_000)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	handle, err := models.NewMediaHandle(path, "a.jpg")
	require.NoError(t, err)

	res, err := c.UploadMedia(context.Background(), "IS123", handle)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "ME1", res.Value.Get("sid").String())
	assert.Equal(t, "file", got.field)
	assert.Equal(t, "a.jpg", got.filename)
	assert.Equal(t, "image/jpeg", got.ctype)
	assert.EqualValues(t, len(payload), got.bytes)
	assert.Equal(t, "AC123", got.user)
	assert.Equal(t, "token", got.pass)
	assert.Equal(t, []TransferState{StateOpened, StateStreaming, StateCompleted}, recorder.snapshot())
	assert.EqualValues(t, len(payload), recorder.bytes)
}

func TestUploadMediaReadsInBoundedChunks(t *testing.T) {
	const chunk = 4 * 1024
	sizes := []int64{1, chunk, 3*chunk + 17, 16 << 20}

	for _, size := range sizes {
		var got receivedUpload
		srv := newMediaServer(t, &got)
		src := &syntheticSource{remaining: size}
		c := newServerClient(t, srv.URL,
			WithChunkSize(chunk),
			WithSourceOpener(func(string) (io.ReadCloser, error) { return src, nil }),
		)

		_, err := c.UploadMedia(context.Background(), "IS123", models.MediaHandle{Path: "/virtual/blob.bin", FileName: "blob.bin"})
		require.NoError(t, err)

		assert.EqualValues(t, size, got.bytes, "size %d", size)
		assert.LessOrEqual(t, src.maxRead, chunk, "size %d", size)
		assert.True(t, src.closed, "source left open for size %d", size)
		assert.Equal(t, "application/octet-stream", got.ctype)
	}
}

func TestUploadMediaMissingSourceMakesNoCall(t *testing.T) {
	recorder := &stateRecorder{}
	c, mock := newMockedClient(t, WithTransferObserver(recorder))

	handle, err := models.NewMediaHandle(filepath.Join(t.TempDir(), "absent.jpg"), "a.jpg")
	require.NoError(t, err)

	_, err = c.UploadMedia(context.Background(), "IS123", handle)
	require.ErrorIs(t, err, providers.ErrMediaSourceUnavailable)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, providers.KindMediaSourceUnavailable, providers.KindOf(err))
	assert.Zero(t, mock.GetTotalCallCount())
	assert.Equal(t, []TransferState{StateOpened, StateFailed}, recorder.snapshot())
}

func TestUploadMediaRejectsEmptyPath(t *testing.T) {
	c, mock := newMockedClient(t)

	_, err := c.UploadMedia(context.Background(), "IS123", models.MediaHandle{FileName: "a.jpg"})
	require.ErrorIs(t, err, providers.ErrInvalidRequest)
	require.ErrorIs(t, err, models.ErrEmptyMediaPath)

	_, err = c.UploadMedia(context.Background(), "", models.MediaHandle{Path: "/tmp/a.jpg"})
	require.ErrorIs(t, err, providers.ErrInvalidRequest)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestUploadMediaSourceFailsMidStream(t *testing.T) {
	recorder := &stateRecorder{}
	src := &syntheticSource{remaining: 1 << 20, failAfter: 64 * 1024}
	c, mock := newMockedClient(t,
		WithChunkSize(8*1024),
		WithTransferObserver(recorder),
		WithSourceOpener(func(string) (io.ReadCloser, error) { return src, nil }),
	)
	mock.RegisterResponder(http.MethodPost, testMediaURL+"/Services/IS123/Media",
		func(req *http.Request) (*http.Response, error) {
			if _, err := io.Copy(io.Discard, req.Body); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusCreated, `{"sid":"ME1"}`), nil
		})

	_, err := c.UploadMedia(context.Background(), "IS123", models.MediaHandle{Path: "/virtual/blob.bin"})
	require.ErrorIs(t, err, providers.ErrMediaSourceUnavailable)
	assert.Contains(t, err.Error(), "disk read error")
	assert.True(t, src.closed)
	assert.Equal(t, []TransferState{StateOpened, StateStreaming, StateFailed}, recorder.snapshot())
}

func TestUploadMediaProviderUnreachable(t *testing.T) {
	recorder := &stateRecorder{}
	src := &syntheticSource{remaining: 1 << 20}
	c, mock := newMockedClient(t,
		WithTransferObserver(recorder),
		WithSourceOpener(func(string) (io.ReadCloser, error) { return src, nil }),
	)
	mock.RegisterResponder(http.MethodPost, testMediaURL+"/Services/IS123/Media",
		httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	_, err := c.UploadMedia(context.Background(), "IS123", models.MediaHandle{Path: "/virtual/blob.bin"})
	require.ErrorIs(t, err, providers.ErrProviderUnreachable)
	assert.True(t, src.closed)
	assert.Equal(t, []TransferState{StateOpened, StateStreaming, StateFailed}, recorder.snapshot())
}

func TestUploadMediaMalformedConfirmation(t *testing.T) {
	src := &syntheticSource{remaining: 10}
	c, mock := newMockedClient(t,
		WithSourceOpener(func(string) (io.ReadCloser, error) { return src, nil }),
	)
	mock.RegisterResponder(http.MethodPost, testMediaURL+"/Services/IS123/Media",
		func(req *http.Request) (*http.Response, error) {
			_, _ = io.Copy(io.Discard, req.Body)
			return httpmock.NewStringResponse(http.StatusCreated, "created"), nil
		})

	_, err := c.UploadMedia(context.Background(), "IS123", models.MediaHandle{Path: "/virtual/blob.bin"})
	require.ErrorIs(t, err, providers.ErrResponseMalformed)
}

func TestUploadMediaWaitsForSlot(t *testing.T) {
	c, mock := newMockedClient(t, WithUploadSlots(1))
	require.True(t, c.slots.TryAcquire(1))
	defer c.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.UploadMedia(ctx, "IS123", models.MediaHandle{Path: "/virtual/blob.bin"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestPartHeaderEscapesQuotes(t *testing.T) {
	h := partHeader(`my "best" photo.png`)
	assert.Equal(t, `form-data; name="file"; filename="my \"best\" photo.png"`, h.Get("Content-Disposition"))
	assert.Equal(t, "image/png", h.Get("Content-Type"))
}
