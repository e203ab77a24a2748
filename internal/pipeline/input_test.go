package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEmails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{
			"id": "m1",
			"thread_id": "t1",
			"from": "alice@acme.com",
			"to": ["bob@corp.io"],
			"subject": "Hello",
			"body": "Hi Bob",
			"date": "2026-03-10T09:00:00Z",
			"labels": ["INBOX"]
		},
		{
			"from": "carol@acme.com",
			"to": ["dan@corp.io"],
			"date": "Tue, 10 Mar 2026 09:00:00 +0100"
		},
		{
			"from": "eve@acme.com",
			"date": "sometime last week"
		}
	]`), 0o644))

	emails, err := ReadEmails(path)
	require.NoError(t, err)
	require.Len(t, emails, 3)

	assert.Equal(t, "m1", emails[0].ID)
	assert.Equal(t, "t1", emails[0].ThreadID)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), emails[0].Date)

	// Missing IDs are synthesized so outcomes stay addressable.
	assert.NotEmpty(t, emails[1].ID)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), emails[1].Date)

	// Unparseable dates are left zero, not fatal.
	assert.True(t, emails[2].Date.IsZero())
}

func TestReadEmailsMissingFile(t *testing.T) {
	_, err := ReadEmails(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestReadEmailsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644))

	_, err := ReadEmails(path)
	assert.Error(t, err)
}
