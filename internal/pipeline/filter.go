package pipeline

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/growthco/mailgraph/internal/model"
)

// FilterRules holds the pattern sets the noise filter matches against.
// The sets are data, not logic: they can be replaced wholesale from a YAML
// file without touching the classification flow.
type FilterRules struct {
	// Labels are provider categories marking promotional/social/bulk mail.
	Labels []string `yaml:"labels"`
	// SenderPatterns match automated sender local parts or role accounts.
	SenderPatterns []string `yaml:"sender_patterns"`
	// SenderDomains are known bulk-mail provider domains.
	SenderDomains []string `yaml:"sender_domains"`
	// SubjectPatterns match transactional/marketing subject phrases.
	SubjectPatterns []string `yaml:"subject_patterns"`
	// BodyPatterns match unsubscribe/marketing boilerplate in bodies.
	BodyPatterns []string `yaml:"body_patterns"`
	// BulkThreshold is the recipient count above which mail is bulk.
	BulkThreshold int `yaml:"bulk_threshold"`
}

// DefaultFilterRules returns the built-in pattern sets.
func DefaultFilterRules() FilterRules {
	return FilterRules{
		Labels: []string{
			"CATEGORY_PROMOTIONS", "CATEGORY_SOCIAL", "CATEGORY_UPDATES",
		},
		SenderPatterns: []string{
			`noreply@`, `no-reply@`, `do-not-reply@`, `notifications?@`,
			`alerts?@`, `mailer@`, `digest@`, `updates@`, `calendar@`,
			`invitations@`, `newsletter@`, `support@`, `billing@`,
			`account@`, `security@`, `postmaster@`, `marketing@`,
		},
		SenderDomains: []string{
			"mailchimp.com", "sendgrid.com", "constantcontact.com",
			"campaignmonitor.com", "mailgun.com", "postmarkapp.com",
			"convertkit.com", "aweber.com", "getresponse.com",
			"activecampaign.com", "hubspot.com", "marketo.com",
			"customer.io", "braze.com", "onesignal.com",
		},
		SubjectPatterns: []string{
			`^\s*\[.*\]`, `your .* (receipt|invoice|statement|order|subscription)`,
			`payment.*received`, `order.*shipped`, `delivery.*update`,
			`package.*tracking`, `appointment.*reminder`, `meeting.*reminder`,
			`calendar.*invitation`, `welcome to`, `thank you for`,
			`(confirm|verify|update|reset) your`, `action required`,
			`security.*alert`, `terms.*update`, `policy.*update`,
			`unsubscribe`, `newsletter`, `weekly digest`, `daily digest`,
		},
		BodyPatterns: []string{
			`click here to unsubscribe`, `unsubscribe.*here`, `opt out`,
			`manage.*subscription`, `update.*preferences`,
			`no longer receive`, `stop receiving`, `this email was sent`,
			`you received this`, `view this email`, `view in browser`,
			`online version`, `email not displaying`,
		},
		BulkThreshold: 10,
	}
}

// LoadFilterRules reads a FilterRules YAML file.
func LoadFilterRules(path string) (FilterRules, error) {
	var rules FilterRules
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "filter: read rules %s", path)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, eris.Wrapf(err, "filter: parse rules %s", path)
	}
	if rules.BulkThreshold <= 0 {
		rules.BulkThreshold = DefaultFilterRules().BulkThreshold
	}
	return rules, nil
}

// Filter classifies emails as substantive or noise. Classification is a
// pure function of the record: no I/O, no side effects, total over any
// input.
type Filter struct {
	labels        map[string]bool
	senderRegex   []*regexp.Regexp
	senderDomains map[string]bool
	subjectRegex  []*regexp.Regexp
	bodyRegex     []*regexp.Regexp
	bulkThreshold int
}

// NewFilter compiles the given rules into a Filter.
func NewFilter(rules FilterRules) (*Filter, error) {
	f := &Filter{
		labels:        make(map[string]bool, len(rules.Labels)),
		senderDomains: make(map[string]bool, len(rules.SenderDomains)),
		bulkThreshold: rules.BulkThreshold,
	}
	for _, l := range rules.Labels {
		f.labels[strings.ToUpper(l)] = true
	}
	for _, d := range rules.SenderDomains {
		f.senderDomains[strings.ToLower(d)] = true
	}

	var err error
	if f.senderRegex, err = compileAll(rules.SenderPatterns); err != nil {
		return nil, eris.Wrap(err, "filter: sender patterns")
	}
	if f.subjectRegex, err = compileAll(rules.SubjectPatterns); err != nil {
		return nil, eris.Wrap(err, "filter: subject patterns")
	}
	if f.bodyRegex, err = compileAll(rules.BodyPatterns); err != nil {
		return nil, eris.Wrap(err, "filter: body patterns")
	}
	return f, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, eris.Wrapf(err, "compile %q", p)
		}
		out = append(out, re)
	}
	return out, nil
}

// Classify returns a verdict for one email. Checks run in fixed precedence
// order and the first match wins. An email matching nothing is kept, even
// when every textual field is empty.
func (f *Filter) Classify(email model.EmailRecord) model.FilterVerdict {
	for _, label := range email.Labels {
		if f.labels[strings.ToUpper(label)] {
			return model.FilterVerdict{Reason: model.FilterReasonLabel}
		}
	}

	sender := strings.ToLower(email.From)
	for _, re := range f.senderRegex {
		if re.MatchString(sender) {
			return model.FilterVerdict{Reason: model.FilterReasonSenderPattern}
		}
	}
	if addr, ok := NormalizeAddress(email.From); ok && f.senderDomains[addr.Domain] {
		return model.FilterVerdict{Reason: model.FilterReasonSenderPattern}
	}

	for _, re := range f.subjectRegex {
		if re.MatchString(email.Subject) {
			return model.FilterVerdict{Reason: model.FilterReasonSubjectPattern}
		}
	}

	for _, re := range f.bodyRegex {
		if re.MatchString(email.Body) {
			return model.FilterVerdict{Reason: model.FilterReasonBodyPattern}
		}
	}

	if f.bulkThreshold > 0 && len(email.Recipients()) > f.bulkThreshold {
		return model.FilterVerdict{Reason: model.FilterReasonRecipientCount}
	}

	return model.FilterVerdict{Keep: true, Reason: model.FilterReasonNone}
}
