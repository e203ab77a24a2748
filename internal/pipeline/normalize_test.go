package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		email    string
		display  string
		domain   string
		parsable bool
	}{
		{name: "bare", raw: "alice@acme.com", email: "alice@acme.com", domain: "acme.com", parsable: true},
		{name: "display name", raw: "Jane Doe <Jane@Acme.COM>", email: "jane@acme.com", display: "Jane Doe", domain: "acme.com", parsable: true},
		{name: "angle brackets only", raw: "<bob@corp.io>", email: "bob@corp.io", domain: "corp.io", parsable: true},
		{name: "surrounding space", raw: "  carol@acme.com  ", email: "carol@acme.com", domain: "acme.com", parsable: true},
		{name: "empty", raw: "", parsable: false},
		{name: "no mailbox", raw: "not an address", parsable: false},
		{name: "missing domain", raw: "alice@", parsable: false},
		{name: "missing local part", raw: "@acme.com", parsable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := NormalizeAddress(tt.raw)
			if !tt.parsable {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.email, addr.Email)
			assert.Equal(t, tt.display, addr.DisplayName)
			assert.Equal(t, tt.domain, addr.Domain)
		})
	}
}

func TestNormalizeAddressList(t *testing.T) {
	addrs := NormalizeAddressList([]string{
		"Alice <alice@acme.com>, bob@corp.io",
		"garbage",
		"carol@acme.com",
	})

	require.Len(t, addrs, 3)
	assert.Equal(t, "alice@acme.com", addrs[0].Email)
	assert.Equal(t, "bob@corp.io", addrs[1].Email)
	assert.Equal(t, "carol@acme.com", addrs[2].Email)
}

func TestNormalizeAddressListQuotedComma(t *testing.T) {
	addrs := NormalizeAddressList([]string{`"Doe, Jane" <jane@acme.com>`})

	require.Len(t, addrs, 1)
	assert.Equal(t, "jane@acme.com", addrs[0].Email)
	assert.Equal(t, "Doe, Jane", addrs[0].DisplayName)
}

func TestFallbackDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", FallbackDisplayName("jane.doe@acme.com"))
	assert.Equal(t, "Bob Smith", FallbackDisplayName("bob_smith@corp.io"))
	assert.Equal(t, "Mary Jo", FallbackDisplayName("mary-jo@acme.com"))
	assert.Equal(t, "noatsign", FallbackDisplayName("noatsign"))
}
