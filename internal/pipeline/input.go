package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthco/mailgraph/internal/model"
)

// emailJSON is the wire shape of one email in an export file. Date is
// kept as a string because exports carry several timestamp formats.
type emailJSON struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"thread_id"`
	From     string   `json:"from"`
	To       []string `json:"to"`
	Cc       []string `json:"cc"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	Date     string   `json:"date"`
	Labels   []string `json:"labels"`
}

var dateFormats = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ReadEmails loads an email export file: a JSON array of email objects.
// Unparseable dates are logged and left zero; grouping and reporting
// still work without them.
func ReadEmails(path string) ([]model.EmailRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read export %s", path)
	}

	var raw []emailJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "pipeline: decode export %s", path)
	}

	emails := make([]model.EmailRecord, 0, len(raw))
	for i, e := range raw {
		record := model.EmailRecord{
			ID:       e.ID,
			ThreadID: e.ThreadID,
			From:     e.From,
			To:       e.To,
			Cc:       e.Cc,
			Subject:  e.Subject,
			Body:     e.Body,
			Labels:   e.Labels,
		}
		if record.ID == "" {
			record.ID = syntheticID(path, i)
		}
		if e.Date != "" {
			date, ok := parseDate(e.Date)
			if !ok {
				zap.L().Warn("pipeline: unparseable email date",
					zap.String("email_id", record.ID),
					zap.String("date", e.Date),
				)
			}
			record.Date = date
		}
		emails = append(emails, record)
	}
	return emails, nil
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func syntheticID(path string, index int) string {
	return fmt.Sprintf("%s#%d", filepath.Base(path), index)
}
