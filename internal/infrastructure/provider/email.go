package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taskfabric/taskfabric/internal/application/notification"
)

// EmailClient sends rendered emails through the transactional email service.
type EmailClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ notification.EmailSender = (*EmailClient)(nil)

// NewEmailClient creates an email provider client.
func NewEmailClient(endpoint, apiKey string) *EmailClient {
	return &EmailClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   newHTTPClient(),
	}
}

type emailRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body"`
}

// Send posts the email to the provider.
func (c *EmailClient) Send(ctx context.Context, msg notification.EmailMessage) error {
	body, err := json.Marshal(emailRequest{
		To:       msg.To,
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.endpoint+"/v1/messages", bytes.NewReader(body), c.apiKey)
	if err != nil {
		return err
	}

	resp, err := doRequest(c.client, req)
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return resp.Body.Close()
}
