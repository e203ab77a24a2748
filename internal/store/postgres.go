package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/growthco/mailgraph/internal/db"
	"github.com/growthco/mailgraph/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_person_by_email": `SELECT id, primary_email, display_name, company_id, first_seen_at, last_seen_at FROM people WHERE primary_email = $1`,
	"get_company":         `SELECT id, domain, display_name FROM companies WHERE domain = $1`,
	"get_area":            `SELECT id, name FROM expertise_areas WHERE name = $1`,
	"get_interaction":     `SELECT id FROM interactions WHERE thread_key = $1`,
	"add_participant":     `INSERT INTO interaction_participants (interaction_id, person_id, role) VALUES ($1, $2, $3) ON CONFLICT (interaction_id, person_id) DO UPDATE SET role = EXCLUDED.role`,
	"mark_email":          `INSERT INTO email_log (email_id, status, reason, processed_at) VALUES ($1, $2, $3, $4) ON CONFLICT (email_id) DO UPDATE SET status = EXCLUDED.status, reason = EXCLUDED.reason, processed_at = EXCLUDED.processed_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS people (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	primary_email TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	company_id    TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain       TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS expertise_areas (
	id   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS interactions (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	thread_key    TEXT NOT NULL UNIQUE,
	subject       TEXT NOT NULL DEFAULT '',
	date          TIMESTAMPTZ,
	summary       TEXT NOT NULL DEFAULT '',
	oracle_failed BOOLEAN NOT NULL DEFAULT false
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
	confidence        DOUBLE PRECISION NOT NULL,
	source_thread_key TEXT NOT NULL,
	PRIMARY KEY (person_id, area_id, source_thread_key)
);

CREATE TABLE IF NOT EXISTS relationships (
	person_a_email    TEXT NOT NULL,
	person_b_email    TEXT NOT NULL,
	message_count     INTEGER NOT NULL DEFAULT 0,
	first_interaction TIMESTAMPTZ,
	last_interaction  TIMESTAMPTZ,
	PRIMARY KEY (person_a_email, person_b_email)
);

CREATE TABLE IF NOT EXISTS email_log (
	email_id     TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_people_company_id ON people(company_id);
CREATE INDEX IF NOT EXISTS idx_interactions_date ON interactions(date);
CREATE INDEX IF NOT EXISTS idx_participants_person ON interaction_participants(person_id);
CREATE INDEX IF NOT EXISTS idx_attributions_person ON expertise_attributions(person_id);
CREATE INDEX IF NOT EXISTS idx_email_log_status ON email_log(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertPerson(ctx context.Context, person *model.Person) (*model.Person, error) {
	id := uuid.New().String()
	var p model.Person
	err := s.pool.QueryRow(ctx,
		`INSERT INTO people (id, primary_email, display_name, company_id, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (primary_email) DO UPDATE SET
		   display_name  = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE people.display_name END,
		   company_id    = CASE WHEN EXCLUDED.company_id <> '' THEN EXCLUDED.company_id ELSE people.company_id END,
		   first_seen_at = LEAST(people.first_seen_at, EXCLUDED.first_seen_at),
		   last_seen_at  = GREATEST(people.last_seen_at, EXCLUDED.last_seen_at)
		 RETURNING id, primary_email, display_name, company_id, first_seen_at, last_seen_at`,
		id, person.PrimaryEmail, person.DisplayName, person.CompanyID,
		person.FirstSeenAt.UTC(), person.LastSeenAt.UTC(),
	).Scan(&p.ID, &p.PrimaryEmail, &p.DisplayName, &p.CompanyID, &p.FirstSeenAt, &p.LastSeenAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert person %s", person.PrimaryEmail)
	}
	return &p, nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, company *model.Company) (*model.Company, error) {
	id := uuid.New().String()
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, domain, display_name) VALUES ($1, $2, $3)
		 ON CONFLICT (domain) DO UPDATE SET
		   display_name = CASE WHEN companies.display_name = '' THEN EXCLUDED.display_name ELSE companies.display_name END
		 RETURNING id, domain, display_name`,
		id, company.Domain, company.DisplayName,
	).Scan(&c.ID, &c.Domain, &c.DisplayName)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert company %s", company.Domain)
	}
	return &c, nil
}

func (s *PostgresStore) GetOrCreateExpertiseArea(ctx context.Context, name string) (*model.ExpertiseArea, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, eris.New("postgres: empty expertise area name")
	}

	id := uuid.New().String()
	var area model.ExpertiseArea
	// DO UPDATE instead of DO NOTHING so RETURNING always yields a row.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO expertise_areas (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name`,
		id, name,
	).Scan(&area.ID, &area.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create expertise area %s", name)
	}
	return &area, nil
}

func (s *PostgresStore) UpsertInteraction(ctx context.Context, interaction *model.Interaction) (*model.Interaction, error) {
	id := interaction.ID
	if id == "" {
		id = uuid.New().String()
	}

	stored := *interaction
	err := s.pool.QueryRow(ctx,
		`INSERT INTO interactions (id, thread_key, subject, date, summary, oracle_failed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (thread_key) DO UPDATE SET
		   subject = EXCLUDED.subject, date = EXCLUDED.date,
		   summary = EXCLUDED.summary, oracle_failed = EXCLUDED.oracle_failed
		 RETURNING id`,
		id, interaction.ThreadKey, interaction.Subject, interaction.Date.UTC(),
		interaction.Summary, interaction.OracleFailed,
	).Scan(&stored.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert interaction %s", interaction.ThreadKey)
	}
	return &stored, nil
}

func (s *PostgresStore) AddInteractionParticipant(ctx context.Context, interactionID, personID, role string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interaction_participants (interaction_id, person_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (interaction_id, person_id) DO UPDATE SET role = EXCLUDED.role`,
		interactionID, personID, role,
	)
	return eris.Wrap(err, "postgres: add interaction participant")
}

func (s *PostgresStore) AddInteractionCompany(ctx context.Context, interactionID, companyID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interaction_companies (interaction_id, company_id) VALUES ($1, $2)
		 ON CONFLICT (interaction_id, company_id) DO NOTHING`,
		interactionID, companyID,
	)
	return eris.Wrap(err, "postgres: add interaction company")
}

func (s *PostgresStore) AddExpertiseAttribution(ctx context.Context, personID, areaID string, confidence float64, sourceThreadKey string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO expertise_attributions (person_id, area_id, confidence, source_thread_key)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (person_id, area_id, source_thread_key) DO UPDATE SET confidence = EXCLUDED.confidence`,
		personID, areaID, confidence, sourceThreadKey,
	)
	return eris.Wrap(err, "postgres: add expertise attribution")
}

func (s *PostgresStore) UpsertRelationships(ctx context.Context, rels []model.Relationship) error {
	if len(rels) == 0 {
		return nil
	}

	rows := make([][]any, len(rels))
	for i, rel := range rels {
		rows[i] = []any{
			rel.PersonAEmail, rel.PersonBEmail, rel.MessageCount,
			rel.FirstInteraction.UTC(), rel.LastInteraction.UTC(),
		}
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "relationships",
		Columns:      []string{"person_a_email", "person_b_email", "message_count", "first_interaction", "last_interaction"},
		ConflictKeys: []string{"person_a_email", "person_b_email"},
		UpdateExprs: map[string]string{
			"message_count":     "relationships.message_count + EXCLUDED.message_count",
			"first_interaction": "LEAST(relationships.first_interaction, EXCLUDED.first_interaction)",
			"last_interaction":  "GREATEST(relationships.last_interaction, EXCLUDED.last_interaction)",
		},
	}, rows)
	return eris.Wrap(err, "postgres: upsert relationships")
}

func (s *PostgresStore) MarkEmail(ctx context.Context, emailID string, outcome model.EmailOutcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_log (email_id, status, reason, processed_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email_id) DO UPDATE SET
		   status = EXCLUDED.status, reason = EXCLUDED.reason, processed_at = EXCLUDED.processed_at`,
		emailID, string(outcome.Status), outcome.Reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: mark email %s", emailID)
}

func (s *PostgresStore) ListPeople(ctx context.Context, filter PersonFilter) ([]model.Person, error) {
	query := `SELECT p.id, p.primary_email, p.display_name, p.company_id, p.first_seen_at, p.last_seen_at
	          FROM people p WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CompanyDomain != "" {
		query += ` AND p.company_id IN (SELECT id FROM companies WHERE domain = $1)`
		args = append(args, filter.CompanyDomain)
		argIdx++
	}
	query += ` ORDER BY p.primary_email`
	query += limitOffsetClause(&args, &argIdx, filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list people")
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.PrimaryEmail, &p.DisplayName, &p.CompanyID, &p.FirstSeenAt, &p.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		people = append(people, p)
	}
	return people, eris.Wrap(rows.Err(), "postgres: list people iterate")
}

func (s *PostgresStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	var p model.Person
	err := s.pool.QueryRow(ctx,
		`SELECT id, primary_email, display_name, company_id, first_seen_at, last_seen_at
		 FROM people WHERE id = $1`,
		personID,
	).Scan(&p.ID, &p.PrimaryEmail, &p.DisplayName, &p.CompanyID, &p.FirstSeenAt, &p.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get person %s", personID)
	}
	return &p, nil
}

func (s *PostgresStore) ListExpertise(ctx context.Context, personID string) ([]model.ExpertiseAttribution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.primary_email, a.name, ea.confidence, ea.source_thread_key
		 FROM expertise_attributions ea
		 JOIN people p ON p.id = ea.person_id
		 JOIN expertise_areas a ON a.id = ea.area_id
		 WHERE ea.person_id = $1
		 ORDER BY ea.confidence DESC`,
		personID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list expertise for %s", personID)
	}
	defer rows.Close()

	var attributions []model.ExpertiseAttribution
	for rows.Next() {
		var attr model.ExpertiseAttribution
		if err := rows.Scan(&attr.PersonEmail, &attr.Area, &attr.Confidence, &attr.SourceThreadKey); err != nil {
			return nil, eris.Wrap(err, "postgres: scan expertise attribution")
		}
		attributions = append(attributions, attr)
	}
	return attributions, eris.Wrap(rows.Err(), "postgres: list expertise iterate")
}

func (s *PostgresStore) ListInteractions(ctx context.Context, filter InteractionFilter) ([]model.Interaction, error) {
	query := `SELECT i.id, i.thread_key, i.subject, i.date, i.summary, i.oracle_failed
	          FROM interactions i`
	args := []any{}
	argIdx := 1

	if filter.PersonEmail != "" {
		query += ` JOIN interaction_participants ip ON ip.interaction_id = i.id
		           JOIN people p ON p.id = ip.person_id
		           WHERE p.primary_email = $1`
		args = append(args, filter.PersonEmail)
		argIdx++
	}
	query += ` ORDER BY i.date DESC`
	query += limitOffsetClause(&args, &argIdx, filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list interactions")
	}
	defer rows.Close()

	var interactions []model.Interaction
	for rows.Next() {
		var in model.Interaction
		if err := rows.Scan(&in.ID, &in.ThreadKey, &in.Subject, &in.Date, &in.Summary, &in.OracleFailed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan interaction")
		}
		interactions = append(interactions, in)
	}
	return interactions, eris.Wrap(rows.Err(), "postgres: list interactions iterate")
}

func (s *PostgresStore) ListRelationships(ctx context.Context, filter RelationshipFilter) ([]model.Relationship, error) {
	query := `SELECT person_a_email, person_b_email, message_count, first_interaction, last_interaction
	          FROM relationships WHERE true`
	args := []any{}
	argIdx := 1

	if filter.PersonEmail != "" {
		query += ` AND (person_a_email = $1 OR person_b_email = $1)`
		args = append(args, filter.PersonEmail)
		argIdx++
	}
	query += ` ORDER BY message_count DESC`
	query += limitOffsetClause(&args, &argIdx, filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list relationships")
	}
	defer rows.Close()

	var rels []model.Relationship
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.PersonAEmail, &r.PersonBEmail, &r.MessageCount, &r.FirstInteraction, &r.LastInteraction); err != nil {
			return nil, eris.Wrap(err, "postgres: scan relationship")
		}
		rels = append(rels, r)
	}
	return rels, eris.Wrap(rows.Err(), "postgres: list relationships iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*GraphStats, error) {
	var stats GraphStats
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM people),
		   (SELECT COUNT(*) FROM companies),
		   (SELECT COUNT(*) FROM interactions),
		   (SELECT COUNT(*) FROM relationships),
		   (SELECT COUNT(*) FROM expertise_areas),
		   (SELECT COUNT(*) FROM email_log WHERE status = 'processed'),
		   (SELECT COUNT(*) FROM email_log WHERE status = 'filtered')`,
	).Scan(&stats.People, &stats.Companies, &stats.Interactions,
		&stats.Relationships, &stats.ExpertiseAreas,
		&stats.EmailsProcessed, &stats.EmailsFiltered)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &stats, nil
}

func limitOffsetClause(args *[]any, argIdx *int, limit, offset int) string {
	if limit <= 0 {
		limit = 100
	}
	clause := fmt.Sprintf(" LIMIT $%d", *argIdx)
	*args = append(*args, limit)
	*argIdx++

	if offset > 0 {
		clause += fmt.Sprintf(" OFFSET $%d", *argIdx)
		*args = append(*args, offset)
		*argIdx++
	}
	return clause
}
