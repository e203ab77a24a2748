package model

// EmailStatus is the final per-email outcome of a pipeline run.
type EmailStatus string

const (
	EmailStatusProcessed EmailStatus = "processed"
	EmailStatusFiltered  EmailStatus = "filtered"
	EmailStatusErrored   EmailStatus = "errored"
)

// EmailOutcome pairs a status with the reason that produced it (filter
// reason for filtered mail, "oracle-error" or a storage error for the rest).
type EmailOutcome struct {
	Status EmailStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// ProcessingReport describes exactly what happened to every email in a run.
// It is produced fresh per run and is not part of the persisted graph.
type ProcessingReport struct {
	TotalEmails      int                     `json:"total_emails"`
	FilteredCount    int                     `json:"filtered_count"`
	ThreadCount      int                     `json:"thread_count"`
	InteractionCount int                     `json:"interaction_count"`
	ErrorCount       int                     `json:"error_count"`
	Outcomes         map[string]EmailOutcome `json:"outcomes"`
}

// NewProcessingReport returns a report with the outcome map initialized.
func NewProcessingReport(totalEmails int) *ProcessingReport {
	return &ProcessingReport{
		TotalEmails: totalEmails,
		Outcomes:    make(map[string]EmailOutcome, totalEmails),
	}
}
