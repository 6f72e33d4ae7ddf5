package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caleslawncare/quote-gateway/internal/model"
)

// ResendTransport posts emails to the Resend HTTP API.
type ResendTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewResendTransport(baseURL, apiKey string, timeoutMs int) *ResendTransport {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}

	return &ResendTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

func (t *ResendTransport) Name() string { return "resend" }

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Name       string `json:"name"`
}

func (t *ResendTransport) Send(ctx context.Context, email model.Email) (string, error) {
	if t.apiKey == "" {
		return "", errors.New("resend: api key not configured")
	}

	b, err := json.Marshal(email)
	if err != nil {
		return "", fmt.Errorf("resend: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/emails", bytes.NewReader(b))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}

	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("resend: read response: %w", err)
	}

	if res.StatusCode/100 != 2 {
		var re resendError
		if json.Unmarshal(body, &re) == nil && re.Message != "" {
			return "", fmt.Errorf("resend: status=%d: %s", res.StatusCode, re.Message)
		}
		return "", fmt.Errorf("resend: status=%d", res.StatusCode)
	}

	var out resendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("resend: decode response: %w", err)
	}

	return out.ID, nil
}
