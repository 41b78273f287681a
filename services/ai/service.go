package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/dmarc"
	localerrors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

const (
	messagesURL      = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

type anthropicService struct {
	cfg    *config.AnthropicConfig
	client *http.Client
	apiURL string
}

func NewAnthropicService(cfg *config.AnthropicConfig) interfaces.NarrativeService {
	return &anthropicService{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		apiURL: messagesURL,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (s *anthropicService) AnalyzeReport(ctx context.Context, feedback *dmarc.Feedback) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "anthropicService.AnalyzeReport")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagDomain(span, feedback.Domain)

	prompt, err := buildPrompt(feedback)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "build prompt")
	}

	retry := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retry.Duration()):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		text, retryable, err := s.call(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	tracing.TraceErr(span, lastErr)
	return "", fmt.Errorf("%w: %v", localerrors.ErrNarrativeUnavailable, lastErr)
}

func (s *anthropicService) call(ctx context.Context, prompt string) (string, bool, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", false, errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		return "", false, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", true, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
	}

	var response messagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", false, errors.New("empty completion")
	}
	return response.Content[0].Text, false, nil
}

func buildPrompt(feedback *dmarc.Feedback) (string, error) {
	records, err := json.MarshalIndent(feedback.Records, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Please analyze this DMARC report and provide a clear, actionable summary:

REPORT METADATA:
- Organization: %s
- Report ID: %s
- Date Range: %d to %d

POLICY:
- Domain: %s
- Policy: %s
- Subdomain Policy: %s
- Percentage: %d%%

RECORDS:
%s

Please provide:
1. **Overall Status**: Pass/fail summary and key metrics
2. **Authentication Results**: DKIM and SPF performance
3. **Source Analysis**: New or suspicious IP addresses
4. **Issues Found**: Any authentication failures or policy violations
5. **Recommendations**: Actions to take if any problems are detected

Keep the analysis concise but thorough, focusing on actionable insights.`,
		feedback.OrgName, feedback.ReportID, feedback.DateBegin, feedback.DateEnd,
		feedback.Domain, feedback.Policy.Mode, feedback.Policy.SubdomainMode, feedback.Policy.Pct,
		string(records)), nil
}
