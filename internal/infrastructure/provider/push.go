package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taskfabric/taskfabric/internal/application/notification"
)

// PushClient sends rendered push notifications through the push gateway.
type PushClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ notification.PushSender = (*PushClient)(nil)

// NewPushClient creates a push provider client.
func NewPushClient(endpoint, apiKey string) *PushClient {
	return &PushClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   newHTTPClient(),
	}
}

type pushRequest struct {
	DeviceToken string `json:"device_token"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// Send posts the push notification to the gateway.
func (c *PushClient) Send(ctx context.Context, msg notification.PushMessage) error {
	body, err := json.Marshal(pushRequest{
		DeviceToken: msg.DeviceToken,
		Title:       msg.Title,
		Body:        msg.Body,
	})
	if err != nil {
		return fmt.Errorf("encode push request: %w", err)
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.endpoint+"/v1/push", bytes.NewReader(body), c.apiKey)
	if err != nil {
		return err
	}

	resp, err := doRequest(c.client, req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	return resp.Body.Close()
}
