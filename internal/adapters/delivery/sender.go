package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Sender performs one signed webhook POST. The signature covers the
// exact transmitted bytes; the payload is never re-serialized between
// signing and sending.
type Sender struct {
	client *http.Client
	secret []byte
}

func NewSender(secret string, timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
		secret: []byte(secret),
	}
}

// Sign computes the hex HMAC-SHA256 of body with the shared secret.
func (s *Sender) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Post sends one attempt. Non-2xx responses are returned as
// httpStatusError so the retry loop can log the downstream body.
func (s *Sender) Post(ctx context.Context, url, webhookType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", s.Sign(body))
	req.Header.Set("X-Webhook-Type", webhookType)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}

	return nil
}
