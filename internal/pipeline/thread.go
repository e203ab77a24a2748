package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/growthco/mailgraph/internal/model"
)

var replyPrefixRe = regexp.MustCompile(`(?i)^\s*((re|fwd?|aw)\s*:\s*)+`)

// GroupThreads partitions emails into conversation threads. Threads appear
// in order of first appearance of their key; emails within a thread are
// ordered by timestamp, ties broken by input order. Missing timestamps sort
// first. The result is deterministic for a given input sequence.
func GroupThreads(emails []model.EmailRecord) []model.Thread {
	index := make(map[string]int)
	var threads []model.Thread

	for _, email := range emails {
		key := threadKey(email)
		i, ok := index[key]
		if !ok {
			i = len(threads)
			index[key] = i
			threads = append(threads, model.Thread{Key: key})
		}
		threads[i].Emails = append(threads[i].Emails, email)
	}

	for i := range threads {
		sortThreadEmails(threads[i].Emails)
		threads[i].Participants = threadParticipants(threads[i].Emails)
	}
	return threads
}

// threadKey returns the provider thread id when present, otherwise a
// content key from the normalized subject and the sorted participant set.
// The fallback keeps a reply chain lacking a provider id grouped without
// merging unrelated one-off emails. An email with neither subject nor
// parseable addresses gets a key of its own.
func threadKey(email model.EmailRecord) string {
	if email.ThreadID != "" {
		return email.ThreadID
	}

	subject := strings.ToLower(strings.TrimSpace(replyPrefixRe.ReplaceAllString(email.Subject, "")))

	seen := make(map[string]bool)
	var participants []string
	for _, addr := range NormalizeAddressList(append([]string{email.From}, email.Recipients()...)) {
		if !seen[addr.Email] {
			seen[addr.Email] = true
			participants = append(participants, addr.Email)
		}
	}
	sort.Strings(participants)

	if subject == "" && len(participants) == 0 {
		return fmt.Sprintf("email:%s", email.ID)
	}
	return fmt.Sprintf("subj:%s|%s", subject, strings.Join(participants, ","))
}

// sortThreadEmails orders emails chronologically, preserving input order
// for equal (or zero) timestamps.
func sortThreadEmails(emails []model.EmailRecord) {
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.Before(emails[j].Date)
	})
}

// threadParticipants collects the distinct normalized addresses across a
// thread's emails, in first-seen order.
func threadParticipants(emails []model.EmailRecord) []model.NormalizedAddress {
	seen := make(map[string]bool)
	var out []model.NormalizedAddress
	for _, email := range emails {
		for _, addr := range NormalizeAddressList(append([]string{email.From}, email.Recipients()...)) {
			if seen[addr.Email] {
				continue
			}
			seen[addr.Email] = true
			out = append(out, addr)
		}
	}
	return out
}
