package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/growthco/mailgraph/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS people (
	id            TEXT PRIMARY KEY,
	primary_email TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	company_id    TEXT NOT NULL DEFAULT '',
	first_seen_at DATETIME NOT NULL,
	last_seen_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY,
	domain       TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS expertise_areas (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS interactions (
	id            TEXT PRIMARY KEY,
	thread_key    TEXT NOT NULL UNIQUE,
	subject       TEXT NOT NULL DEFAULT '',
	date          DATETIME,
	summary       TEXT NOT NULL DEFAULT '',
	oracle_failed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS interaction_participants (
	interaction_id TEXT NOT NULL REFERENCES interactions(id),
	person_id      TEXT NOT NULL REFERENCES people(id),
	role           TEXT NOT NULL DEFAULT 'participant',
	PRIMARY KEY (interaction_id, person_id)
);

CREATE TABLE IF NOT EXISTS interaction_companies (
	interaction_id TEXT NOT NULL REFERENCES interactions(id),
	company_id     TEXT NOT NULL REFERENCES companies(id),
	PRIMARY KEY (interaction_id, company_id)
);

CREATE TABLE IF NOT EXISTS expertise_attributions (
	person_id         TEXT NOT NULL REFERENCES people(id),
	area_id           TEXT NOT NULL REFERENCES expertise_areas(id),
	confidence        REAL NOT NULL,
	source_thread_key TEXT NOT NULL,
	PRIMARY KEY (person_id, area_id, source_thread_key)
);

CREATE TABLE IF NOT EXISTS relationships (
	person_a_email    TEXT NOT NULL,
	person_b_email    TEXT NOT NULL,
	message_count     INTEGER NOT NULL DEFAULT 0,
	first_interaction DATETIME,
	last_interaction  DATETIME,
	PRIMARY KEY (person_a_email, person_b_email)
);

CREATE TABLE IF NOT EXISTS email_log (
	email_id     TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	processed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_people_company_id ON people(company_id);
CREATE INDEX IF NOT EXISTS idx_interactions_date ON interactions(date);
CREATE INDEX IF NOT EXISTS idx_participants_person ON interaction_participants(person_id);
CREATE INDEX IF NOT EXISTS idx_attributions_person ON expertise_attributions(person_id);
CREATE INDEX IF NOT EXISTS idx_email_log_status ON email_log(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPerson(ctx context.Context, person *model.Person) (*model.Person, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO people (id, primary_email, display_name, company_id, first_seen_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(primary_email) DO UPDATE SET
		   display_name  = CASE WHEN excluded.display_name <> '' THEN excluded.display_name ELSE people.display_name END,
		   company_id    = CASE WHEN excluded.company_id <> '' THEN excluded.company_id ELSE people.company_id END,
		   first_seen_at = MIN(people.first_seen_at, excluded.first_seen_at),
		   last_seen_at  = MAX(people.last_seen_at, excluded.last_seen_at)`,
		id, person.PrimaryEmail, person.DisplayName, person.CompanyID,
		person.FirstSeenAt.UTC(), person.LastSeenAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert person %s", person.PrimaryEmail)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, primary_email, display_name, company_id, first_seen_at, last_seen_at
		 FROM people WHERE primary_email = ?`,
		person.PrimaryEmail,
	)
	return scanPerson(row)
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, company *model.Company) (*model.Company, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, domain, display_name) VALUES (?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
		   display_name = CASE WHEN companies.display_name = '' THEN excluded.display_name ELSE companies.display_name END`,
		id, company.Domain, company.DisplayName,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert company %s", company.Domain)
	}

	var c model.Company
	err = s.db.QueryRowContext(ctx,
		`SELECT id, domain, display_name FROM companies WHERE domain = ?`,
		company.Domain,
	).Scan(&c.ID, &c.Domain, &c.DisplayName)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", company.Domain)
	}
	return &c, nil
}

func (s *SQLiteStore) GetOrCreateExpertiseArea(ctx context.Context, name string) (*model.ExpertiseArea, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, eris.New("sqlite: empty expertise area name")
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expertise_areas (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		id, name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert expertise area %s", name)
	}

	var area model.ExpertiseArea
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name FROM expertise_areas WHERE name = ?`,
		name,
	).Scan(&area.ID, &area.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get expertise area %s", name)
	}
	return &area, nil
}

func (s *SQLiteStore) UpsertInteraction(ctx context.Context, interaction *model.Interaction) (*model.Interaction, error) {
	id := interaction.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, thread_key, subject, date, summary, oracle_failed)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_key) DO UPDATE SET
		   subject = excluded.subject, date = excluded.date,
		   summary = excluded.summary, oracle_failed = excluded.oracle_failed`,
		id, interaction.ThreadKey, interaction.Subject, interaction.Date.UTC(),
		interaction.Summary, interaction.OracleFailed,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert interaction %s", interaction.ThreadKey)
	}

	stored := *interaction
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM interactions WHERE thread_key = ?`,
		interaction.ThreadKey,
	).Scan(&stored.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get interaction %s", interaction.ThreadKey)
	}
	return &stored, nil
}

func (s *SQLiteStore) AddInteractionParticipant(ctx context.Context, interactionID, personID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interaction_participants (interaction_id, person_id, role) VALUES (?, ?, ?)
		 ON CONFLICT(interaction_id, person_id) DO UPDATE SET role = excluded.role`,
		interactionID, personID, role,
	)
	return eris.Wrap(err, "sqlite: add interaction participant")
}

func (s *SQLiteStore) AddInteractionCompany(ctx context.Context, interactionID, companyID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interaction_companies (interaction_id, company_id) VALUES (?, ?)
		 ON CONFLICT(interaction_id, company_id) DO NOTHING`,
		interactionID, companyID,
	)
	return eris.Wrap(err, "sqlite: add interaction company")
}

func (s *SQLiteStore) AddExpertiseAttribution(ctx context.Context, personID, areaID string, confidence float64, sourceThreadKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expertise_attributions (person_id, area_id, confidence, source_thread_key)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(person_id, area_id, source_thread_key) DO UPDATE SET confidence = excluded.confidence`,
		personID, areaID, confidence, sourceThreadKey,
	)
	return eris.Wrap(err, "sqlite: add expertise attribution")
}

func (s *SQLiteStore) UpsertRelationships(ctx context.Context, rels []model.Relationship) error {
	if len(rels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin relationships tx")
	}
	defer tx.Rollback()

	for _, rel := range rels {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (person_a_email, person_b_email, message_count, first_interaction, last_interaction)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(person_a_email, person_b_email) DO UPDATE SET
			   message_count     = relationships.message_count + excluded.message_count,
			   first_interaction = MIN(relationships.first_interaction, excluded.first_interaction),
			   last_interaction  = MAX(relationships.last_interaction, excluded.last_interaction)`,
			rel.PersonAEmail, rel.PersonBEmail, rel.MessageCount,
			rel.FirstInteraction.UTC(), rel.LastInteraction.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert relationship %s/%s", rel.PersonAEmail, rel.PersonBEmail)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit relationships tx")
}

func (s *SQLiteStore) MarkEmail(ctx context.Context, emailID string, outcome model.EmailOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_log (email_id, status, reason, processed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(email_id) DO UPDATE SET
		   status = excluded.status, reason = excluded.reason, processed_at = excluded.processed_at`,
		emailID, string(outcome.Status), outcome.Reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: mark email %s", emailID)
}

func (s *SQLiteStore) ListPeople(ctx context.Context, filter PersonFilter) ([]model.Person, error) {
	query := `SELECT p.id, p.primary_email, p.display_name, p.company_id, p.first_seen_at, p.last_seen_at
	          FROM people p WHERE 1=1`
	var args []any

	if filter.CompanyDomain != "" {
		query += ` AND p.company_id IN (SELECT id FROM companies WHERE domain = ?)`
		args = append(args, filter.CompanyDomain)
	}
	query += ` ORDER BY p.primary_email LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list people")
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, *p)
	}
	return people, eris.Wrap(rows.Err(), "sqlite: list people iterate")
}

func (s *SQLiteStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, primary_email, display_name, company_id, first_seen_at, last_seen_at
		 FROM people WHERE id = ?`,
		personID,
	)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *SQLiteStore) ListExpertise(ctx context.Context, personID string) ([]model.ExpertiseAttribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.primary_email, a.name, ea.confidence, ea.source_thread_key
		 FROM expertise_attributions ea
		 JOIN people p ON p.id = ea.person_id
		 JOIN expertise_areas a ON a.id = ea.area_id
		 WHERE ea.person_id = ?
		 ORDER BY ea.confidence DESC`,
		personID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list expertise for %s", personID)
	}
	defer rows.Close()

	var attributions []model.ExpertiseAttribution
	for rows.Next() {
		var attr model.ExpertiseAttribution
		if err := rows.Scan(&attr.PersonEmail, &attr.Area, &attr.Confidence, &attr.SourceThreadKey); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan expertise attribution")
		}
		attributions = append(attributions, attr)
	}
	return attributions, eris.Wrap(rows.Err(), "sqlite: list expertise iterate")
}

func (s *SQLiteStore) ListInteractions(ctx context.Context, filter InteractionFilter) ([]model.Interaction, error) {
	query := `SELECT i.id, i.thread_key, i.subject, i.date, i.summary, i.oracle_failed
	          FROM interactions i`
	var args []any

	if filter.PersonEmail != "" {
		query += ` JOIN interaction_participants ip ON ip.interaction_id = i.id
		           JOIN people p ON p.id = ip.person_id
		           WHERE p.primary_email = ?`
		args = append(args, filter.PersonEmail)
	}
	query += ` ORDER BY i.date DESC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list interactions")
	}
	defer rows.Close()

	var interactions []model.Interaction
	for rows.Next() {
		var in model.Interaction
		if err := rows.Scan(&in.ID, &in.ThreadKey, &in.Subject, &in.Date, &in.Summary, &in.OracleFailed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan interaction")
		}
		interactions = append(interactions, in)
	}
	return interactions, eris.Wrap(rows.Err(), "sqlite: list interactions iterate")
}

func (s *SQLiteStore) ListRelationships(ctx context.Context, filter RelationshipFilter) ([]model.Relationship, error) {
	query := `SELECT person_a_email, person_b_email, message_count, first_interaction, last_interaction
	          FROM relationships WHERE 1=1`
	var args []any

	if filter.PersonEmail != "" {
		query += ` AND (person_a_email = ? OR person_b_email = ?)`
		args = append(args, filter.PersonEmail, filter.PersonEmail)
	}
	query += ` ORDER BY message_count DESC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list relationships")
	}
	defer rows.Close()

	var rels []model.Relationship
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.PersonAEmail, &r.PersonBEmail, &r.MessageCount, &r.FirstInteraction, &r.LastInteraction); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan relationship")
		}
		rels = append(rels, r)
	}
	return rels, eris.Wrap(rows.Err(), "sqlite: list relationships iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*GraphStats, error) {
	var stats GraphStats
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM people`, &stats.People},
		{`SELECT COUNT(*) FROM companies`, &stats.Companies},
		{`SELECT COUNT(*) FROM interactions`, &stats.Interactions},
		{`SELECT COUNT(*) FROM relationships`, &stats.Relationships},
		{`SELECT COUNT(*) FROM expertise_areas`, &stats.ExpertiseAreas},
		{`SELECT COUNT(*) FROM email_log WHERE status = 'processed'`, &stats.EmailsProcessed},
		{`SELECT COUNT(*) FROM email_log WHERE status = 'filtered'`, &stats.EmailsFiltered},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, eris.Wrap(err, "sqlite: stats")
		}
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*model.Person, error) {
	var p model.Person
	if err := row.Scan(&p.ID, &p.PrimaryEmail, &p.DisplayName, &p.CompanyID, &p.FirstSeenAt, &p.LastSeenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan person")
	}
	return &p, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
