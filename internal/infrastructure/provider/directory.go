package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/taskfabric/taskfabric/internal/application/worker"
	"github.com/taskfabric/taskfabric/internal/directory"
)

// HTTPDirectory resolves contact details from the user-directory service.
// Lookups run behind a circuit breaker: when the directory is down the
// breaker opens and lookups fail fast instead of stalling every delivery on
// a timeout.
type HTTPDirectory struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

var _ directory.Resolver = (*HTTPDirectory)(nil)

// NewHTTPDirectory creates a directory client for the given base endpoint.
func NewHTTPDirectory(endpoint string) *HTTPDirectory {
	return &HTTPDirectory{
		endpoint: endpoint,
		client:   newHTTPClient(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "user-directory",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A missing contact is a normal answer, not a directory outage.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, directory.ErrContactNotFound)
			},
		}),
	}
}

type contactResponse struct {
	Email       string `json:"email"`
	DeviceToken string `json:"device_token"`
}

// Lookup fetches the user's contact record. A 404 maps to
// directory.ErrContactNotFound; an open breaker and transport failures are
// retryable.
func (d *HTTPDirectory) Lookup(ctx context.Context, userID string) (directory.Contact, error) {
	result, err := d.breaker.Execute(func() (any, error) {
		return d.fetch(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return directory.Contact{}, worker.Transient(fmt.Errorf("directory unavailable: %w", err))
		}
		return directory.Contact{}, err
	}
	return result.(directory.Contact), nil
}

func (d *HTTPDirectory) fetch(ctx context.Context, userID string) (directory.Contact, error) {
	url := fmt.Sprintf("%s/v1/users/%s/contact", d.endpoint, userID)
	req, err := newJSONRequest(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return directory.Contact{}, err
	}

	resp, err := doRequest(d.client, req)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return directory.Contact{}, directory.ErrContactNotFound
		}
		return directory.Contact{}, fmt.Errorf("lookup contact for %s: %w", userID, err)
	}
	defer resp.Body.Close()

	var body contactResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return directory.Contact{}, fmt.Errorf("decode contact for %s: %w", userID, err)
	}

	return directory.Contact{
		Email:       body.Email,
		DeviceToken: body.DeviceToken,
	}, nil
}
