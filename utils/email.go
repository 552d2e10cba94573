package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Mailer delivers an HTML message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, name, subject, htmlBody string) error
}

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// ZeptoMailer sends through the ZeptoMail HTTP API.
type ZeptoMailer struct {
	apiURL string // e.g. https://api.zeptomail.com/v1.1/email
	apiKey string // e.g. Zoho-enczapikey xxxxx
	from   string
	client *http.Client
	log    *zap.Logger
}

func NewZeptoMailer(apiURL, apiKey, from string, log *zap.Logger) *ZeptoMailer {
	return &ZeptoMailer{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

func (m *ZeptoMailer) Send(ctx context.Context, to, name, subject, htmlBody string) error {
	payload := emailRequest{
		From:     emailAddress{Address: m.from},
		To:       []toRecipient{{Email: emailWithName{Address: to, Name: name}}},
		Subject:  subject,
		HtmlBody: htmlBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}

	m.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// LogMailer only logs; it stands in when ZeptoMail is not configured.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) Send(_ context.Context, to, _, subject, _ string) error {
	m.Log.Debug("email delivery disabled", zap.String("to", to), zap.String("subject", subject))
	return nil
}
