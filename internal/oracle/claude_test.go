package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/growthco/mailgraph/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func TestClaudeOracleExtract(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" && len(req.Messages) == 1
	})).Return(textResponse(`{"summary": "Intro call follow-up."}`), nil).Once()

	o := NewClaudeOracle(client, "claude-haiku-4-5-20251001", 1024, time.Minute, 100)
	result, err := o.Extract(context.Background(), "From: a@b.com\nSubject: Intro\n\nHi!")
	require.NoError(t, err)

	assert.Equal(t, "Intro call follow-up.", result.Summary)
	client.AssertExpectations(t)
}

func TestClaudeOracleRetriesThenSucceeds(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"summary": "Recovered."}`), nil).Once()

	o := NewClaudeOracle(client, "claude-haiku-4-5-20251001", 1024, time.Minute, 100)
	result, err := o.Extract(context.Background(), "thread text")
	require.NoError(t, err)

	assert.Equal(t, "Recovered.", result.Summary)
	client.AssertExpectations(t)
}

func TestClaudeOracleRetriesAreRateLimited(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// One request every 10s: the first attempt spends the only token, so
	// the retry must wait on the limiter and the context expires first.
	o := NewClaudeOracle(client, "claude-haiku-4-5-20251001", 1024, time.Minute, 0.1)
	_, err := o.Extract(ctx, "thread text")
	require.Error(t, err)

	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestClaudeOracleContextCancelled(t *testing.T) {
	client := new(mockAnthropicClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewClaudeOracle(client, "claude-haiku-4-5-20251001", 1024, time.Minute, 100)
	_, err := o.Extract(ctx, "thread text")
	assert.Error(t, err)
}
