package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oakmere/smsbridge/internal/infrastructure/logging"
)

// deviceListKeys are the wrapper keys the vendor uses for device lists,
// checked in order.
var deviceListKeys = []string{"devices", "data"}

// messageListKeys are the wrapper keys the vendor uses for message lists,
// checked in order.
var messageListKeys = []string{"data", "messages", "items"}

// Client is an HTTP client for the SMS gateway vendor API.
//
// All methods are safe for concurrent use; the underlying http.Client
// handles connection pooling.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logging.Logger
}

// SendRequest is the payload for sending an SMS through a device.
type SendRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
	MediaURLs  []string `json:"media_urls,omitempty"`
}

// New creates a gateway client.
//
// Parameters:
//   - baseURL: Vendor API root, e.g. "https://api.textbee.dev/api/v1"
//   - apiKey: Account API key sent in the x-api-key header
//   - timeout: Per-request timeout
//   - logger: Structured logger for request diagnostics
func New(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ListDevices returns all devices registered on the account.
//
// Each device is the raw JSON object from the vendor; field names vary
// by vendor version so callers resolve aliases themselves.
func (c *Client) ListDevices(ctx context.Context) ([]map[string]any, error) {
	body, err := c.get(ctx, "/gateway/devices")
	if err != nil {
		return nil, err
	}
	return unwrapList(body, deviceListKeys)
}

// ListReceivedMessages returns the received-SMS list for a device,
// newest ordering not guaranteed by the vendor.
func (c *Client) ListReceivedMessages(ctx context.Context, deviceID string) ([]map[string]any, error) {
	path := fmt.Sprintf("/gateway/devices/%s/get-received-sms", url.PathEscape(deviceID))
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return unwrapList(body, messageListKeys)
}

// Send delivers an SMS through the given device.
//
// Parameters:
//   - deviceID: Gateway device to send from
//   - recipients: E.164 phone numbers
//   - message: Text body
//   - mediaURLs: Optional MMS attachments (nil for plain SMS)
func (c *Client) Send(ctx context.Context, deviceID string, recipients []string, message string, mediaURLs []string) error {
	path := fmt.Sprintf("/gateway/devices/%s/send-sms", url.PathEscape(deviceID))

	payload, err := json.Marshal(SendRequest{
		Recipients: recipients,
		Message:    message,
		MediaURLs:  mediaURLs,
	})
	if err != nil {
		return fmt.Errorf("%w: encode send request: %w", ErrTransient, err)
	}

	_, err = c.do(ctx, http.MethodPost, path, payload)
	return err
}

// GetMessage fetches a single message by its vendor ID.
func (c *Client) GetMessage(ctx context.Context, deviceID, messageID string) (map[string]any, error) {
	path := fmt.Sprintf("/gateway/devices/%s/sms/%s", url.PathEscape(deviceID), url.PathEscape(messageID))
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: decode message: %w", ErrTransient, err)
	}

	// Some vendor versions wrap single objects too.
	if inner, ok := obj["data"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}

// Ping validates the API key by listing devices and, when the account
// has at least one device, probing its received-messages endpoint.
//
// Returns ErrAuth if the key is rejected, ErrTransient for anything else.
func (c *Client) Ping(ctx context.Context) error {
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}
	id, ok := devices[0]["_id"].(string)
	if !ok || id == "" {
		if id, ok = devices[0]["id"].(string); !ok || id == "" {
			return nil
		}
	}
	_, err = c.ListReceivedMessages(ctx, id)
	return err
}

// get issues a GET request and returns the raw response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// do issues a request with the API key header and maps failures onto
// the package sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransient, err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuth
	case resp.StatusCode >= 400:
		c.logger.Warn("Gateway request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrTransient, method, path, resp.StatusCode)
	}

	return body, nil
}

// unwrapList extracts a list of JSON objects from a vendor response.
//
// Accepts either a bare JSON array or an object wrapping the array
// under one of the given keys (first present wins). Non-object list
// elements are skipped.
func unwrapList(body []byte, keys []string) ([]map[string]any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrTransient, err)
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range keys {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
	}

	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			result = append(result, obj)
		}
	}
	return result, nil
}
