package gateway

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
)

// readFields decodes a generic field body. JSON objects and form bodies are
// accepted; an empty body is an empty field set.
func readFields(c echo.Context) (models.Fields, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, providers.Invalid(fmt.Errorf("gateway: read body: %w", err))
	}
	if strings.TrimSpace(string(raw)) == "" {
		return models.Fields{}, nil
	}

	var fields models.Fields
	switch mediaType(c) {
	case echo.MIMEApplicationForm:
		fields, err = models.FieldsFromForm(string(raw))
	case echo.MIMEApplicationJSON, "":
		fields, err = models.FieldsFromJSON(raw)
	default:
		return nil, providers.Invalid(fmt.Errorf("gateway: unsupported content type %q", c.Request().Header.Get(echo.HeaderContentType)))
	}
	if err != nil {
		return nil, providers.Invalid(fmt.Errorf("gateway: decode fields: %w", err))
	}
	return fields, nil
}

func mediaType(c echo.Context) string {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return strings.ToLower(mt)
}
