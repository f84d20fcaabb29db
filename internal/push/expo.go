package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultExpoURL is Expo's push send endpoint.
const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

// ExpoTransport sends through the Expo push service.
type ExpoTransport struct {
	url         string
	accessToken string
	client      *http.Client
}

func NewExpoTransport(url, accessToken string) *ExpoTransport {
	if url == "" {
		url = DefaultExpoURL
	}
	return &ExpoTransport{
		url:         url,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *ExpoTransport) Provider() string { return ProviderExpo }

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send posts a single message and checks the returned ticket. A
// DeviceNotRegistered ticket maps to ErrDeviceNotRegistered.
func (t *ExpoTransport) Send(ctx context.Context, token string, msg Message) error {
	if !strings.HasPrefix(token, "ExponentPushToken[") && !strings.HasPrefix(token, "ExpoPushToken[") {
		return fmt.Errorf("expo: malformed push token")
	}
	body, err := json.Marshal([]expoMessage{{
		To:    token,
		Title: msg.Title,
		Body:  msg.Body,
		Data:  msg.Data,
		Sound: "default",
	}})
	if err != nil {
		return fmt.Errorf("expo: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("expo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.accessToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("expo: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed expoResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("expo: status %d: decode response: %w", resp.StatusCode, err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("expo: %s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("expo: unexpected status %d", resp.StatusCode)
	}
	if len(parsed.Data) == 0 {
		return fmt.Errorf("expo: empty ticket list")
	}
	tk := parsed.Data[0]
	if tk.Status == "ok" {
		return nil
	}
	if tk.Details.Error == "DeviceNotRegistered" {
		return fmt.Errorf("expo: %w", ErrDeviceNotRegistered)
	}
	return fmt.Errorf("expo: ticket error %s: %s", tk.Details.Error, tk.Message)
}
