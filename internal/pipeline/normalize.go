package pipeline

import (
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/growthco/mailgraph/internal/model"
)

var titleCaser = cases.Title(language.English)

// NormalizeAddress canonicalizes a raw address string ("Jane Doe
// <Jane@Acme.COM>" or a bare mailbox) into a lowercased email, optional
// display name, and domain. Returns false when no mailbox can be parsed.
func NormalizeAddress(raw string) (model.NormalizedAddress, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.NormalizedAddress{}, false
	}

	email := raw
	name := ""
	if addr, err := mail.ParseAddress(raw); err == nil {
		email = addr.Address
		name = addr.Name
	}

	email = strings.ToLower(strings.TrimSpace(strings.Trim(email, "<>")))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return model.NormalizedAddress{}, false
	}

	return model.NormalizedAddress{
		Email:       email,
		DisplayName: strings.TrimSpace(name),
		Domain:      email[at+1:],
	}, true
}

// NormalizeAddressList parses a slice of raw address strings, dropping
// anything that does not contain a mailbox. Comma-separated entries inside
// a single string are split first.
func NormalizeAddressList(raws []string) []model.NormalizedAddress {
	var out []model.NormalizedAddress
	for _, raw := range raws {
		for _, part := range splitAddresses(raw) {
			if addr, ok := NormalizeAddress(part); ok {
				out = append(out, addr)
			}
		}
	}
	return out
}

// splitAddresses splits a header-style address list on commas that are not
// inside a quoted display name.
func splitAddresses(raw string) []string {
	if !strings.Contains(raw, ",") {
		return []string{raw}
	}
	if addrs, err := mail.ParseAddressList(raw); err == nil {
		parts := make([]string, 0, len(addrs))
		for _, a := range addrs {
			parts = append(parts, a.String())
		}
		return parts
	}
	return strings.Split(raw, ",")
}

// FallbackDisplayName derives a human-readable name from an email local
// part: "jane.doe" becomes "Jane Doe".
func FallbackDisplayName(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	return titleCaser.String(local)
}
