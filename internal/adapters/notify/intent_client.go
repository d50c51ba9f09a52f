package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shipment-tracking-service/internal/domain"
)

// IntentClient consumes the external intent classification capability
// as a black box. It implements ports.IntentClassifier.
type IntentClient struct {
	session *http.Client
	baseURL string
	apiKey  string
}

func NewIntentClient(baseURL, apiKey string) (*IntentClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("intent client: base URL is empty")
	}

	return &IntentClient{
		session: &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}, nil
}

type classifyRequest struct {
	Text    string `json:"text"`
	Context struct {
		Status    string `json:"status"`
		Substatus string `json:"substatus"`
	} `json:"context"`
}

type classifyResponse struct {
	Intent             string  `json:"intent"`
	Confidence         float64 `json:"confidence"`
	ResponseText       string  `json:"response_text"`
	SuggestedSubstatus string  `json:"suggested_substatus,omitempty"`
}

func (c *IntentClient) Classify(
	ctx context.Context,
	text string,
	status domain.Status,
	substatus domain.Substatus,
) (*domain.IntentResult, error) {
	var reqBody classifyRequest
	reqBody.Text = text
	reqBody.Context.Status = string(status)
	reqBody.Context.Substatus = string(substatus)

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("classify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("classify: classifier status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("classify: decode response: %w", err)
	}

	result := &domain.IntentResult{
		Intent:       domain.Intent(out.Intent),
		Confidence:   out.Confidence,
		ResponseText: out.ResponseText,
	}
	if out.SuggestedSubstatus != "" {
		s := domain.Substatus(out.SuggestedSubstatus)
		result.SuggestedSubstatus = &s
	}

	return result, nil
}
