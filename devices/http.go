package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/hearthlabs/hearth/trigger"
)

// HTTPSource reads device state from a SmartThings-style REST hub.
// Transient failures are retried with short exponential backoff inside the
// call; client errors are not retried.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPSource creates a source for the hub at baseURL. token may be
// empty for unauthenticated hubs.
func NewHTTPSource(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "devices_http").Logger(),
	}
}

// bulkResponse is the hub's full-state payload.
type bulkResponse struct {
	Devices []struct {
		DeviceID   string            `json:"device_id"`
		Attributes map[string]string `json:"attributes"`
	} `json:"devices"`
}

// singleResponse is the hub's one-attribute payload.
type singleResponse struct {
	Value string `json:"value"`
}

func (s *HTTPSource) GetAllStates(ctx context.Context) (trigger.States, error) {
	var out bulkResponse
	if err := s.getJSON(ctx, s.baseURL+"/v1/states", &out); err != nil {
		return nil, fmt.Errorf("fetch device states: %w", err)
	}

	states := make(trigger.States, len(out.Devices))
	for _, d := range out.Devices {
		if d.DeviceID == "" {
			continue
		}
		attrs := make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			attrs[k] = v
		}
		states[d.DeviceID] = attrs
	}

	s.logger.Debug().
		Str("method", "GetAllStates").
		Int("devices", len(states)).
		Msg("snapshot fetched")
	return states, nil
}

func (s *HTTPSource) GetState(ctx context.Context, device, attribute string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/devices/%s/states/%s",
		s.baseURL, url.PathEscape(device), url.PathEscape(attribute))

	var out singleResponse
	if err := s.getJSON(ctx, endpoint, &out); err != nil {
		return "", fmt.Errorf("fetch state of %s.%s: %w", device, attribute, err)
	}
	return out.Value, nil
}

// getJSON performs a GET with up to three attempts. 4xx responses are
// permanent; network errors and 5xx are retried.
func (s *HTTPSource) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	b := backoff.WithMaxRetries(eb, 2)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() //nolint:errcheck // Body close error can be ignored

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("hub returned %s", resp.Status)
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			s.logger.Warn().
				Str("endpoint", endpoint).
				Str("status", resp.Status).
				Msg("hub error, retrying")
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
