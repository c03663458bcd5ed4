package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
	"github.com/example/comms-gateway/internal/providers/transport"
)

// TransferState is the lifecycle of one upload:
// opened -> streaming -> completed, or opened/streaming -> failed.
type TransferState string

const (
	StateOpened    TransferState = "opened"
	StateStreaming TransferState = "streaming"
	StateCompleted TransferState = "completed"
	StateFailed    TransferState = "failed"
)

// TransferObserver is told about every state an upload enters along with the
// number of source bytes streamed so far. Calls for a single upload never
// overlap.
type TransferObserver interface {
	ObserveTransfer(state TransferState, bytes int64)
}

type nopTransferObserver struct{}

func (nopTransferObserver) ObserveTransfer(TransferState, int64) {}

const mediaFormField = "file"

type transfer struct {
	client    *Client
	serviceID string
	handle    models.MediaHandle
	state     TransferState
	bytes     int64
}

func (t *transfer) moveTo(state TransferState) {
	t.state = state
	t.client.transfers.ObserveTransfer(state, t.bytes)
	t.client.logger.Debug().
		Str("service_id", t.serviceID).
		Str("file_name", t.handle.FileName).
		Str("state", string(state)).
		Int64("bytes", t.bytes).
		Msg("media transfer state changed")
}

// UploadMedia streams the local file named by handle to the media service as
// a single multipart POST. The source is opened before any network work, so
// an unreadable path fails with ErrMediaSourceUnavailable and no outbound
// call. The file is copied through one fixed-size buffer; memory use does not
// grow with file size.
func (c *Client) UploadMedia(ctx context.Context, serviceID string, handle models.MediaHandle) (models.Result, error) {
	if err := requireID("service id", serviceID); err != nil {
		return models.Result{}, err
	}
	if strings.TrimSpace(handle.Path) == "" {
		return models.Result{}, providers.Invalid(fmt.Errorf("%s upload_media: %w", ProviderName, models.ErrEmptyMediaPath))
	}
	if strings.TrimSpace(handle.FileName) == "" {
		handle.FileName = filepath.Base(handle.Path)
	}

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return models.Result{}, fmt.Errorf("%s upload_media: wait for upload slot: %w", ProviderName, err)
	}
	defer c.slots.Release(1)

	tr := &transfer{client: c, serviceID: serviceID, handle: handle}
	tr.moveTo(StateOpened)

	src, err := c.open(handle.Path)
	if err != nil {
		tr.moveTo(StateFailed)
		return models.Result{}, &providers.ProviderError{
			Kind:      providers.ErrMediaSourceUnavailable,
			Provider:  ProviderName,
			Operation: "upload_media",
			Err:       err,
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan error, 1)

	tr.moveTo(StateStreaming)
	go func() {
		done <- c.stream(pw, mw, src, tr)
	}()

	value, status, callErr := c.media.Call(ctx, transport.Request{
		Operation:   "upload_media",
		Method:      http.MethodPost,
		URL:         c.media.URL("Services", serviceID, "Media"),
		ContentType: mw.FormDataContentType(),
		Body:        pr,
	})
	// Unblock the producer if the transport stopped reading early.
	_ = pr.Close()
	streamErr := <-done

	if callErr != nil {
		tr.moveTo(StateFailed)
		var readErr *sourceReadError
		if errors.As(streamErr, &readErr) {
			return models.Result{}, &providers.ProviderError{
				Kind:      providers.ErrMediaSourceUnavailable,
				Provider:  ProviderName,
				Operation: "upload_media",
				Err:       readErr.err,
			}
		}
		return models.Result{}, callErr
	}

	tr.moveTo(StateCompleted)
	c.logger.Info().
		Str("service_id", serviceID).
		Str("file_name", handle.FileName).
		Int64("bytes", tr.bytes).
		Int("status", status).
		Msg("media upload completed")
	return models.Result{StatusCode: status, Value: value}, nil
}

// stream writes the multipart body into pw and always closes src and pw.
func (c *Client) stream(pw *io.PipeWriter, mw *multipart.Writer, src io.ReadCloser, tr *transfer) error {
	defer src.Close()

	part, err := mw.CreatePart(partHeader(tr.handle.FileName))
	if err != nil {
		_ = pw.CloseWithError(err)
		return err
	}

	// Hiding WriterTo keeps io.CopyBuffer on the fixed buffer.
	reader := &countingReader{r: src, n: &tr.bytes}
	buf := make([]byte, c.chunkBytes)
	if _, err := io.CopyBuffer(part, readerOnly{reader}, buf); err != nil {
		if reader.err != nil {
			err = &sourceReadError{err: reader.err}
		}
		_ = pw.CloseWithError(err)
		return err
	}

	if err := mw.Close(); err != nil {
		_ = pw.CloseWithError(err)
		return err
	}
	return pw.Close()
}

func partHeader(fileName string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, mediaFormField, quoteEscaper.Replace(fileName)))
	ct := mime.TypeByExtension(filepath.Ext(fileName))
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	return h
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type readerOnly struct{ io.Reader }

type countingReader struct {
	r   io.Reader
	n   *int64
	err error
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	*cr.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		cr.err = err
	}
	return n, err
}

type sourceReadError struct{ err error }

func (e *sourceReadError) Error() string { return "read media source: " + e.err.Error() }
func (e *sourceReadError) Unwrap() error { return e.err }
