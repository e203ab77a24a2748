package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthco/mailgraph/internal/model"
)

func defaultTestFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(DefaultFilterRules())
	require.NoError(t, err)
	return f
}

func TestClassifyKeepsDirectMail(t *testing.T) {
	f := defaultTestFilter(t)
	verdict := f.Classify(model.EmailRecord{
		From:    "alice@acme.com",
		To:      []string{"bob@corp.io"},
		Subject: "Question about the proposal",
		Body:    "Do you have time to talk through section 3 tomorrow?",
	})

	assert.True(t, verdict.Keep)
	assert.Equal(t, model.FilterReasonNone, verdict.Reason)
}

func TestClassifyPromotionalLabel(t *testing.T) {
	f := defaultTestFilter(t)
	verdict := f.Classify(model.EmailRecord{
		From:   "alice@acme.com",
		Labels: []string{"category_promotions"},
	})

	assert.False(t, verdict.Keep)
	assert.Equal(t, model.FilterReasonLabel, verdict.Reason)
}

func TestClassifyAutomatedSender(t *testing.T) {
	f := defaultTestFilter(t)
	for _, from := range []string{
		"noreply@service.example.com",
		"No-Reply <no-reply@bank.example.com>",
		"notifications@github.example.com",
	} {
		verdict := f.Classify(model.EmailRecord{From: from})
		assert.False(t, verdict.Keep, "sender %s should be filtered", from)
		assert.Equal(t, model.FilterReasonSenderPattern, verdict.Reason)
	}
}

func TestClassifyBulkProviderDomain(t *testing.T) {
	f := defaultTestFilter(t)
	verdict := f.Classify(model.EmailRecord{From: "campaigns@mailchimp.com"})

	assert.False(t, verdict.Keep)
	assert.Equal(t, model.FilterReasonSenderPattern, verdict.Reason)
}

func TestClassifySubjectPattern(t *testing.T) {
	f := defaultTestFilter(t)
	verdict := f.Classify(model.EmailRecord{
		From:    "alice@acme.com",
		Subject: "Your March receipt from CloudHost",
	})

	assert.False(t, verdict.Keep)
	assert.Equal(t, model.FilterReasonSubjectPattern, verdict.Reason)
}

func TestClassifyBodyPattern(t *testing.T) {
	f := defaultTestFilter(t)
	verdict := f.Classify(model.EmailRecord{
		From:    "alice@acme.com",
		Subject: "Company news",
		Body:    "Full story inside. Click here to unsubscribe at any time.",
	})

	assert.False(t, verdict.Keep)
	assert.Equal(t, model.FilterReasonBodyPattern, verdict.Reason)
}

func TestClassifyBulkRecipientCount(t *testing.T) {
	f := defaultTestFilter(t)
	to := make([]string, 11)
	for i := range to {
		to[i] = "person" + string(rune('a'+i)) + "@acme.com"
	}
	verdict := f.Classify(model.EmailRecord{
		From:    "alice@acme.com",
		To:      to,
		Subject: "All hands",
		Body:    "See you there.",
	})

	assert.False(t, verdict.Keep)
	assert.Equal(t, model.FilterReasonRecipientCount, verdict.Reason)
}

func TestClassifyPrecedenceLabelFirst(t *testing.T) {
	// An email matching both a label and a sender pattern reports the
	// label, the highest-precedence check.
	f := defaultTestFilter(t)
	verdict := f.Classify(model.EmailRecord{
		From:   "noreply@service.example.com",
		Labels: []string{"CATEGORY_UPDATES"},
	})

	assert.Equal(t, model.FilterReasonLabel, verdict.Reason)
}

func TestClassifyEmptyEmailKept(t *testing.T) {
	f := defaultTestFilter(t)
	verdict := f.Classify(model.EmailRecord{})

	assert.True(t, verdict.Keep)
}

func TestLoadFilterRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
labels: [CATEGORY_FORUMS]
sender_patterns: ["bot@"]
bulk_threshold: 3
`), 0o644))

	rules, err := LoadFilterRules(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"CATEGORY_FORUMS"}, rules.Labels)
	assert.Equal(t, 3, rules.BulkThreshold)

	f, err := NewFilter(rules)
	require.NoError(t, err)
	verdict := f.Classify(model.EmailRecord{From: "bot@acme.com"})
	assert.False(t, verdict.Keep)
}

func TestLoadFilterRulesMissingFile(t *testing.T) {
	_, err := LoadFilterRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
