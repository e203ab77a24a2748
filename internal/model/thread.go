package model

// Thread is one conversation: the emails sharing a thread key, in
// chronological order, plus the distinct normalized participant addresses.
// Threads are assembled once per pipeline run and never mutated afterwards.
type Thread struct {
	Key          string              `json:"key"`
	Emails       []EmailRecord       `json:"emails"`
	Participants []NormalizedAddress `json:"participants"`
}

// Subject returns the subject of the thread's first email.
func (t Thread) Subject() string {
	if len(t.Emails) == 0 {
		return ""
	}
	return t.Emails[0].Subject
}
