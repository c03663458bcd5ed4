package email

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/example/comms-gateway/internal/providers"
	"github.com/example/comms-gateway/internal/util"
)

// Disposition controls how a client renders an attachment.
type Disposition string

const (
	DispositionAttachment Disposition = "attachment"
	DispositionInline     Disposition = "inline"
)

// MailData is the transactional email request, in the provider's wire shape.
type MailData struct {
	Personalizations []Personalization `json:"personalizations"`
	From             Endpoint          `json:"from"`
	Subject          string            `json:"subject"`
	Content          []Content         `json:"content"`
	ReplyTo          *Endpoint         `json:"reply_to,omitempty"`
	Attachments      []Attachment      `json:"attachments,omitempty"`
}

// Personalization is one envelope of recipients.
type Personalization struct {
	To  []Endpoint `json:"to"`
	CC  []Endpoint `json:"cc,omitempty"`
	BCC []Endpoint `json:"bcc,omitempty"`
}

// Endpoint is an address with an optional display name.
type Endpoint struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Content is one body part, e.g. text/plain or text/html.
type Content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Attachment carries base64 encoded file content.
type Attachment struct {
	Content     string      `json:"content"`
	Filename    string      `json:"filename"`
	Type        string      `json:"type,omitempty"`
	Disposition Disposition `json:"disposition,omitempty"`
	ContentID   string      `json:"content_id,omitempty"`
}

// DecodeMailData strictly decodes a MailData document and validates it.
func DecodeMailData(r io.Reader) (MailData, error) {
	var data MailData
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return MailData{}, providers.Invalid(fmt.Errorf("email: decode: %w", err))
	}
	if dec.More() {
		return MailData{}, providers.Invalid(errors.New("email: decode: trailing data after document"))
	}
	if err := data.Validate(); err != nil {
		return MailData{}, err
	}
	return data, nil
}

// Validate enforces a non-empty subject, a valid sender, at least one
// recipient and at least one content part. Every problem found is reported.
func (m MailData) Validate() error {
	var errs []error

	if err := util.RequireNonBlank("subject", m.Subject); err != nil {
		errs = append(errs, err)
	}
	if _, err := util.ValidateEmail(m.From.Email); err != nil {
		errs = append(errs, fmt.Errorf("from: %w", err))
	}
	if m.ReplyTo != nil {
		if _, err := util.ValidateEmail(m.ReplyTo.Email); err != nil {
			errs = append(errs, fmt.Errorf("reply_to: %w", err))
		}
	}

	if len(m.Personalizations) == 0 {
		errs = append(errs, errors.New("personalizations: at least one recipient is required"))
	}
	for i, p := range m.Personalizations {
		if len(p.To) == 0 {
			errs = append(errs, fmt.Errorf("personalizations[%d].to: at least one recipient is required", i))
		}
		errs = append(errs, validateEndpoints(fmt.Sprintf("personalizations[%d].to", i), p.To)...)
		errs = append(errs, validateEndpoints(fmt.Sprintf("personalizations[%d].cc", i), p.CC)...)
		errs = append(errs, validateEndpoints(fmt.Sprintf("personalizations[%d].bcc", i), p.BCC)...)
	}

	if len(m.Content) == 0 {
		errs = append(errs, errors.New("content: at least one part is required"))
	}
	for i, c := range m.Content {
		if err := util.RequireNonBlank(fmt.Sprintf("content[%d].type", i), c.Type); err != nil {
			errs = append(errs, err)
		}
		if err := util.RequireNonBlank(fmt.Sprintf("content[%d].value", i), c.Value); err != nil {
			errs = append(errs, err)
		}
	}

	for i, a := range m.Attachments {
		if err := util.RequireNonBlank(fmt.Sprintf("attachments[%d].content", i), a.Content); err != nil {
			errs = append(errs, err)
		}
		if err := util.RequireNonBlank(fmt.Sprintf("attachments[%d].filename", i), a.Filename); err != nil {
			errs = append(errs, err)
		}
		switch a.Disposition {
		case "", DispositionAttachment, DispositionInline:
		default:
			errs = append(errs, fmt.Errorf("attachments[%d].disposition: unsupported value %q", i, a.Disposition))
		}
	}

	if len(errs) > 0 {
		return providers.Invalid(fmt.Errorf("email: %w", errors.Join(errs...)))
	}
	return nil
}

// Recipients counts every to, cc and bcc address.
func (m MailData) Recipients() int {
	n := 0
	for _, p := range m.Personalizations {
		n += len(p.To) + len(p.CC) + len(p.BCC)
	}
	return n
}

func validateEndpoints(field string, endpoints []Endpoint) []error {
	var errs []error
	for i, e := range endpoints {
		if _, err := util.ValidateEmail(e.Email); err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", field, i, err))
		}
	}
	return errs
}
