package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultFullObject(t *testing.T) {
	raw := `{
		"summary": "Alice asked Bob for help reviewing the vendor contract.",
		"participants": [
			{"email": "alice@acme.com", "name": "Alice Smith", "role": "sender"},
			{"email": "bob@acme.com", "name": "Bob Jones", "role": "recipient"}
		],
		"companies": [
			{"domain": "acme.com", "name": "Acme Corp"}
		],
		"expertise_claims": [
			{"person_email": "bob@acme.com", "area": "Contract Law", "confidence": 0.85}
		]
	}`

	result, err := ParseResult(raw)
	require.NoError(t, err)

	assert.Equal(t, "Alice asked Bob for help reviewing the vendor contract.", result.Summary)
	require.Len(t, result.Participants, 2)
	assert.Equal(t, "alice@acme.com", result.Participants[0].Email)
	assert.Equal(t, "sender", result.Participants[0].Role)

	require.Len(t, result.Companies, 1)
	assert.Equal(t, "acme.com", result.Companies[0].Domain)

	require.Len(t, result.ExpertiseClaims, 1)
	assert.Equal(t, "contract law", result.ExpertiseClaims[0].Area)
	assert.InDelta(t, 0.85, result.ExpertiseClaims[0].Confidence, 0.001)
}

func TestParseResultCodeFences(t *testing.T) {
	raw := "```json\n{\"summary\": \"Short thread.\"}\n```"

	result, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "Short thread.", result.Summary)
}

func TestParseResultSurroundingProse(t *testing.T) {
	raw := `Here is the extraction you asked for:
{"summary": "Quarterly planning discussion.", "participants": []}
Let me know if you need anything else.`

	result, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly planning discussion.", result.Summary)
}

func TestParseResultDropsEntriesMissingIdentity(t *testing.T) {
	raw := `{
		"participants": [
			{"name": "No Email"},
			{"email": "ok@acme.com"}
		],
		"companies": [
			{"name": "No Domain Inc"}
		],
		"expertise_claims": [
			{"area": "sales"},
			{"person_email": "ok@acme.com", "confidence": 0.5}
		]
	}`

	result, err := ParseResult(raw)
	require.NoError(t, err)

	require.Len(t, result.Participants, 1)
	assert.Equal(t, "ok@acme.com", result.Participants[0].Email)
	assert.Empty(t, result.Companies)
	assert.Empty(t, result.ExpertiseClaims)
}

func TestParseResultStringConfidence(t *testing.T) {
	raw := `{"expertise_claims": [{"person_email": "a@b.com", "area": "tax", "confidence": "0.7"}]}`

	result, err := ParseResult(raw)
	require.NoError(t, err)
	require.Len(t, result.ExpertiseClaims, 1)
	assert.InDelta(t, 0.7, result.ExpertiseClaims[0].Confidence, 0.001)
}

func TestParseResultNoJSON(t *testing.T) {
	_, err := ParseResult("I could not analyze this thread.")
	assert.Error(t, err)
}
