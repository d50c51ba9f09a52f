package notify

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
)

// ChatNotifier sends driver-facing messages through the external chat
// service. It implements ports.Notifier.
type ChatNotifier struct {
	session *http.Client
	baseURL string
	apiKey  string
}

func NewChatNotifier(baseURL, apiKey string) (*ChatNotifier, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("chat notifier: base URL is empty")
	}

	return &ChatNotifier{
		session: &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}, nil
}

type sendTextRequest struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

func (n *ChatNotifier) SendText(ctx context.Context, channelID, text string) error {
	body, err := json.Marshal(sendTextRequest{ChannelID: channelID, Text: text})
	if err != nil {
		return fmt.Errorf("send text: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send text: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.session.Do(req)
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send text: chat service status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	return nil
}
