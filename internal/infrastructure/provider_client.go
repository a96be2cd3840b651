package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"revenda_bot/internal/interfaces"
)

// ErrProviderStatus wraps non-2xx answers from the provider.
var ErrProviderStatus = errors.New("provider returned non-2xx status")

const maxProviderRead = 64 << 10

// ProviderClient talks to the WhatsApp HTTP provider (Evolution-style API).
type ProviderClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	log     zerolog.Logger
}

func NewProviderClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *ProviderClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ProviderClient{
		baseURL: NormalizeBaseURL(baseURL),
		apiKey:  apiKey,
		timeout: timeout,
		http:    &http.Client{},
		log:     log.With().Str("component", "provider").Logger(),
	}
}

// NormalizeBaseURL strips trailing slashes and a "/manager" suffix, a common
// copy-paste from the provider's web console.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	for strings.HasSuffix(strings.ToLower(u), "/manager") {
		u = strings.TrimRight(u[:len(u)-len("/manager")], "/")
	}
	return u
}

// BaseURL returns the normalized provider address.
func (c *ProviderClient) BaseURL() string { return c.baseURL }

// Send posts payload to /message/{endpoint}/{instance}.
func (c *ProviderClient) Send(ctx context.Context, endpoint, instance string, payload any) (interfaces.ProviderResponse, error) {
	path := fmt.Sprintf("/message/%s/%s", endpoint, url.PathEscape(instance))
	return c.do(ctx, http.MethodPost, path, payload, c.timeout)
}

type connectionStateResponse struct {
	Instance struct {
		State string `json:"state"`
	} `json:"instance"`
	State string `json:"state"`
}

// ConnectionState returns the provider's view of the instance ("open" when usable).
func (c *ProviderClient) ConnectionState(ctx context.Context, instance string) (string, interfaces.ProviderResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+url.PathEscape(instance), nil, c.timeout)
	if err != nil {
		return "", resp, err
	}
	var parsed connectionStateResponse
	if err := json.Unmarshal([]byte(resp.Body), &parsed); err != nil {
		return "", resp, fmt.Errorf("decode connection state: %w", err)
	}
	state := parsed.Instance.State
	if state == "" {
		state = parsed.State
	}
	return strings.ToLower(state), resp, nil
}

// SendPresence shows "typing" for delay. The provider holds the request for
// the delay, so the timeout is extended by it.
func (c *ProviderClient) SendPresence(ctx context.Context, instance, number string, delay time.Duration) error {
	body := map[string]any{
		"number":   number,
		"presence": "composing",
		"delay":    delay.Milliseconds(),
	}
	_, err := c.do(ctx, http.MethodPost, "/chat/sendPresence/"+url.PathEscape(instance), body, c.timeout+delay)
	return err
}

func (c *ProviderClient) do(ctx context.Context, method, path string, payload any, timeout time.Duration) (interfaces.ProviderResponse, error) {
	var out interfaces.ProviderResponse

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return out, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Dur("elapsed", time.Since(start)).Msg("provider request failed")
		return out, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderRead))
	out.StatusCode = resp.StatusCode
	out.Body = string(raw)
	if err != nil {
		return out, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("provider call")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)
	}
	return out, nil
}
