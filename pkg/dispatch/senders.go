package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/logger"
	"github.com/jordanlanch/taxpipe/pkg/models"
	"github.com/jordanlanch/taxpipe/pkg/phone"
)

// SendGridSender delivers email queue entries via SendGrid. The subject and
// body come from the stage-piece template map; rendering beyond name/link
// substitution happens upstream of this package.
type SendGridSender struct {
	client        *sendgrid.Client
	fromEmail     string
	fromName      string
	schedulingURL string
	templates     map[string]EmailTemplate
}

// EmailTemplate is the rendered-enough content for one stage piece.
type EmailTemplate struct {
	Subject string
	HTML    string
	Plain   string
}

var _ domain.EmailSender = (*SendGridSender)(nil)

// NewSendGridSender creates a SendGrid-backed email sender
func NewSendGridSender(apiKey, fromEmail, fromName, schedulingURL string, templates map[string]EmailTemplate) *SendGridSender {
	return &SendGridSender{
		client:        sendgrid.NewSendClient(apiKey),
		fromEmail:     fromEmail,
		fromName:      fromName,
		schedulingURL: schedulingURL,
		templates:     templates,
	}
}

// Send delivers one email entry.
func (s *SendGridSender) Send(ctx context.Context, entry models.QueueEntry) error {
	tmpl, ok := s.templates[entry.StagePiece]
	if !ok {
		return fmt.Errorf("no template for stage piece %q", entry.StagePiece)
	}

	link := fmt.Sprintf("%s/%s", s.schedulingURL, entry.Token)
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(entry.Name, entry.Address)
	html := fmt.Sprintf(tmpl.HTML, entry.Name, link)
	plain := fmt.Sprintf(tmpl.Plain, entry.Name, link)
	message := mail.NewSingleEmail(from, tmpl.Subject, to, plain, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

// ConsoleEmailSender logs entries instead of sending. Development only.
type ConsoleEmailSender struct {
	Log logger.Logger
}

var _ domain.EmailSender = (*ConsoleEmailSender)(nil)

// Send logs the entry.
func (s *ConsoleEmailSender) Send(_ context.Context, entry models.QueueEntry) error {
	s.Log.Info("email (console mode)",
		"to", entry.Address, "case", entry.CaseNumber, "piece", entry.StagePiece)
	return nil
}

// TextProviderSender delivers text entries through the texting provider's
// REST API, one POST per outbound message from the tracked business number.
type TextProviderSender struct {
	http          *http.Client
	baseURL       string
	apiKey        string
	fromNumber    string
	schedulingURL string
	templates     map[string]string
}

var _ domain.TextSender = (*TextProviderSender)(nil)

// NewTextProviderSender creates a provider-backed text sender
func NewTextProviderSender(baseURL, apiKey, fromNumber, schedulingURL string, templates map[string]string) *TextProviderSender {
	return &TextProviderSender{
		http:          &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		apiKey:        apiKey,
		fromNumber:    fromNumber,
		schedulingURL: schedulingURL,
		templates:     templates,
	}
}

// Send delivers one text entry. Landlines are refused locally; the provider
// would reject them anyway and each attempt costs a billable API call.
func (s *TextProviderSender) Send(ctx context.Context, entry models.QueueEntry) error {
	tmpl, ok := s.templates[entry.StagePiece]
	if !ok {
		return fmt.Errorf("no template for stage piece %q", entry.StagePiece)
	}
	if !phone.IsTextable(entry.Address, "US") {
		return fmt.Errorf("number %s cannot receive texts", entry.Address)
	}

	link := fmt.Sprintf("%s/%s", s.schedulingURL, entry.Token)
	content := fmt.Sprintf(tmpl, entry.Name, link)
	payload, err := json.Marshal(map[string]string{
		"customer_phone_number": entry.Address,
		"tracking_number":       s.fromNumber,
		"content":               content,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/text-messages.json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("text provider returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// ConsoleTextSender logs text entries instead of sending. Development only;
// production injects a real texting provider.
type ConsoleTextSender struct {
	Log logger.Logger
}

var _ domain.TextSender = (*ConsoleTextSender)(nil)

// Send logs the entry.
func (s *ConsoleTextSender) Send(_ context.Context, entry models.QueueEntry) error {
	s.Log.Info("text (console mode)",
		"to", entry.Address, "case", entry.CaseNumber, "piece", entry.StagePiece)
	return nil
}
