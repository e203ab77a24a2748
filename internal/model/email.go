package model

import "time"

// EmailRecord is a single raw email as delivered by the fetch layer.
// Records are immutable once ingested; every optional field may be empty.
type EmailRecord struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"thread_id,omitempty"`
	From     string    `json:"from"`
	To       []string  `json:"to,omitempty"`
	Cc       []string  `json:"cc,omitempty"`
	Subject  string    `json:"subject,omitempty"`
	Body     string    `json:"body,omitempty"`
	Date     time.Time `json:"date,omitempty"`
	Labels   []string  `json:"labels,omitempty"`
}

// Recipients returns To and Cc addresses as a single slice.
func (e EmailRecord) Recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc))
	out = append(out, e.To...)
	out = append(out, e.Cc...)
	return out
}

// NormalizedAddress is a canonicalized mailbox: lowercased trimmed email,
// the display name if one was present, and the mail domain.
type NormalizedAddress struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Domain      string `json:"domain"`
}

// FilterReason explains why an email was rejected by the noise filter.
type FilterReason string

const (
	FilterReasonNone           FilterReason = "none"
	FilterReasonLabel          FilterReason = "label"
	FilterReasonSenderPattern  FilterReason = "sender-pattern"
	FilterReasonSubjectPattern FilterReason = "subject-pattern"
	FilterReasonBodyPattern    FilterReason = "body-pattern"
	FilterReasonRecipientCount FilterReason = "high-recipient-count"
)

// FilterVerdict is the filter's decision for one email. It never mutates
// the record it describes.
type FilterVerdict struct {
	Keep   bool         `json:"keep"`
	Reason FilterReason `json:"reason"`
}
