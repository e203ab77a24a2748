package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/growthco/mailgraph/pkg/anthropic"
)

const extractSystemPrompt = `You analyze business email threads and extract structured relationship data.

Given the full text of an email thread, respond with a single JSON object:

{
  "summary": "one or two sentences describing what the thread is about",
  "participants": [
    {"email": "person@example.com", "name": "Person Name", "role": "sender|recipient|participant"}
  ],
  "companies": [
    {"domain": "example.com", "name": "Example Inc"}
  ],
  "expertise_claims": [
    {"person_email": "person@example.com", "area": "contract law", "confidence": 0.8}
  ]
}

Rules:
- Only include participants whose email address appears in the thread.
- Only claim expertise when the thread shows the person demonstrating or being asked for knowledge in that area, with confidence between 0.0 and 1.0.
- Omit any field you cannot determine. Respond with JSON only, no prose.`

const extractMaxRetries = 3

// ClaudeOracle extracts thread-level relationship data using the
// Anthropic API. Calls are rate limited and retried on transient
// failures; the per-call timeout bounds each attempt.
type ClaudeOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewClaudeOracle builds an oracle using the given client and model.
// requestsPerSecond caps the outbound call rate across all threads.
func NewClaudeOracle(client anthropic.Client, model string, maxTokens int64, timeout time.Duration, requestsPerSecond float64) *ClaudeOracle {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &ClaudeOracle{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Extract sends the thread text to the model and parses the structured
// result. The returned error is non-nil only when no usable result
// could be obtained after retries.
func (o *ClaudeOracle) Extract(ctx context.Context, threadText string) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= extractMaxRetries; attempt++ {
		// Every attempt counts against the rate limit, retries included.
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "oracle: rate limit wait")
		}

		resp, err := o.callOnce(ctx, threadText)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			zap.L().Warn("oracle: extraction attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "oracle: extract")
			case <-time.After(time.Duration(attempt) * time.Second):
			}
			continue
		}

		result, err := ParseResult(resp.Text())
		if err != nil {
			lastErr = err
			continue
		}
		resp.Usage.LogCost(o.model)
		return result, nil
	}

	return nil, eris.Wrap(lastErr, "oracle: extract")
}

func (o *ClaudeOracle) callOnce(ctx context.Context, threadText string) (*anthropic.MessageResponse, error) {
	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	return o.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		System:    extractSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Email thread:\n\n%s", threadText)},
		},
	})
}
