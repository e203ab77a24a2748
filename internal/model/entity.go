package model

import "time"

// Person is a deduplicated identity keyed by normalized primary email.
// Within a run no two Person values ever share a PrimaryEmail.
type Person struct {
	ID           string    `json:"id,omitempty"`
	PrimaryEmail string    `json:"primary_email"`
	DisplayName  string    `json:"display_name,omitempty"`
	CompanyID    string    `json:"company_id,omitempty"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// Company is a deduplicated organization keyed by mail domain. Domains on
// the personal-provider denylist never produce a Company.
type Company struct {
	ID          string `json:"id,omitempty"`
	Domain      string `json:"domain"`
	DisplayName string `json:"display_name,omitempty"`
}

// ExpertiseArea is a topic of expertise, unique by lowercased name.
type ExpertiseArea struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// ExpertiseAttribution links a person to an expertise area with the
// oracle's confidence and the thread that produced the evidence. Repeated
// attributions for the same (person, area) are independent evidence rows.
type ExpertiseAttribution struct {
	PersonEmail     string  `json:"person_email"`
	Area            string  `json:"area"`
	Confidence      float64 `json:"confidence"`
	SourceThreadKey string  `json:"source_thread_key"`
}

// Participant is a person's appearance in an interaction with the role the
// oracle assigned, or "participant" when unspecified.
type Participant struct {
	Person *Person `json:"person"`
	Role   string  `json:"role"`
}

// Interaction is the one-per-thread record the pipeline emits: subject and
// date from the thread itself, summary from the oracle (or a synthesized
// fallback), plus resolved participants, companies, and expertise claims.
type Interaction struct {
	ID           string                 `json:"id,omitempty"`
	ThreadKey    string                 `json:"thread_key"`
	Subject      string                 `json:"subject"`
	Date         time.Time              `json:"date"`
	Summary      string                 `json:"summary"`
	Participants []Participant          `json:"participants"`
	Companies    []*Company             `json:"companies,omitempty"`
	Expertise    []ExpertiseAttribution `json:"expertise,omitempty"`
	OracleFailed bool                   `json:"oracle_failed,omitempty"`
}

// Relationship is an undirected edge between two people who appeared in the
// same email. PersonA sorts before PersonB so (a,b) and (b,a) collapse.
type Relationship struct {
	PersonAEmail     string    `json:"person_a_email"`
	PersonBEmail     string    `json:"person_b_email"`
	MessageCount     int       `json:"message_count"`
	FirstInteraction time.Time `json:"first_interaction"`
	LastInteraction  time.Time `json:"last_interaction"`
}
