package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/growthco/mailgraph/internal/model"
)

// personalProviderDomains lists consumer mail providers that never
// represent a company. A candidate with one of these domains resolves to
// no Company at all.
var personalProviderDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"ymail.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"msn.com":        true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"mac.com":        true,
	"proton.me":      true,
	"protonmail.com": true,
	"gmx.com":        true,
	"zoho.com":       true,
	"mail.com":       true,
	"fastmail.com":   true,
	"hey.com":        true,
}

// IsPersonalDomain reports whether domain belongs to a consumer mail
// provider.
func IsPersonalDomain(domain string) bool {
	return personalProviderDomains[strings.ToLower(strings.TrimSpace(domain))]
}

// PersonCandidate is a possibly-partial person observation from any
// source: email headers or oracle output.
type PersonCandidate struct {
	Email       string
	DisplayName string
	SeenAt      time.Time
}

// CompanyCandidate is a possibly-partial company observation.
type CompanyCandidate struct {
	Domain      string
	DisplayName string
}

// Resolver merges person and company candidates produced by independent
// per-thread extractions into one stable identity set for the run. It is
// the only shared mutable state touched by concurrent extraction workers,
// so every resolve is atomic under a single mutex.
type Resolver struct {
	mu        sync.Mutex
	people    map[string]*model.Person
	companies map[string]*model.Company
	// nameSeenAt records when each person's current display name was
	// observed. No entry means the name is a local-part fallback, which
	// any observed name replaces.
	nameSeenAt map[string]time.Time
	now        func() time.Time
}

// NewResolver creates an empty run-scoped resolver.
func NewResolver() *Resolver {
	return &Resolver{
		people:     make(map[string]*model.Person),
		companies:  make(map[string]*model.Company),
		nameSeenAt: make(map[string]time.Time),
		now:        time.Now,
	}
}

// ResolvePerson returns the one Person identity for the candidate's
// normalized email, creating it on first sight. Display names merge as
// most-recent-non-empty-wins regardless of resolution order: an older
// observation arriving later never replaces a newer name. A person never
// observed with a name carries one derived from the email local part.
// First/last seen extend to cover the observation. Resolving the same
// email twice, in any order, returns the same pointer. Returns nil for a
// candidate without a parseable email.
func (r *Resolver) ResolvePerson(c PersonCandidate) *model.Person {
	addr, ok := NormalizeAddress(c.Email)
	if !ok {
		return nil
	}
	if addr.DisplayName != "" && c.DisplayName == "" {
		c.DisplayName = addr.DisplayName
	}

	seenAt := c.SeenAt
	if seenAt.IsZero() {
		seenAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.people[addr.Email]
	if !exists {
		p = &model.Person{
			PrimaryEmail: addr.Email,
			DisplayName:  FallbackDisplayName(addr.Email),
			FirstSeenAt:  seenAt,
			LastSeenAt:   seenAt,
		}
		if company := r.resolveCompanyLocked(CompanyCandidate{Domain: addr.Domain}); company != nil {
			p.CompanyID = company.Domain
		}
		r.people[addr.Email] = p
	}

	if name := strings.TrimSpace(c.DisplayName); name != "" {
		namedAt, named := r.nameSeenAt[addr.Email]
		if !named || !seenAt.Before(namedAt) {
			p.DisplayName = name
			r.nameSeenAt[addr.Email] = seenAt
		}
	}
	if seenAt.Before(p.FirstSeenAt) {
		p.FirstSeenAt = seenAt
	}
	if seenAt.After(p.LastSeenAt) {
		p.LastSeenAt = seenAt
	}
	return p
}

// ResolveCompany returns the one Company identity for the candidate's
// domain, or nil when the domain is empty or belongs to a personal mail
// provider. The first non-empty display name wins: an oracle inventing a
// different name later does not override an established one.
func (r *Resolver) ResolveCompany(c CompanyCandidate) *model.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveCompanyLocked(c)
}

func (r *Resolver) resolveCompanyLocked(c CompanyCandidate) *model.Company {
	domain := strings.ToLower(strings.TrimSpace(c.Domain))
	if domain == "" || personalProviderDomains[domain] {
		return nil
	}

	company, exists := r.companies[domain]
	if !exists {
		company = &model.Company{Domain: domain}
		r.companies[domain] = company
	}
	if company.DisplayName == "" {
		company.DisplayName = strings.TrimSpace(c.DisplayName)
	}
	return company
}

// People returns all resolved people, keyed by primary email.
func (r *Resolver) People() map[string]*model.Person {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.Person, len(r.people))
	for k, v := range r.people {
		out[k] = v
	}
	return out
}

// Companies returns all resolved companies, keyed by domain.
func (r *Resolver) Companies() map[string]*model.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.Company, len(r.companies))
	for k, v := range r.companies {
		out[k] = v
	}
	return out
}
