package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthco/mailgraph/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testPerson(email string) *model.Person {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &model.Person{
		PrimaryEmail: email,
		FirstSeenAt:  now,
		LastSeenAt:   now,
	}
}

func TestUpsertPersonCreateAndMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.UpsertPerson(ctx, testPerson("jane@acme.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, p1.ID)
	assert.Empty(t, p1.DisplayName)

	// Second upsert with a name and a wider seen range merges into the
	// same row.
	update := testPerson("jane@acme.com")
	update.DisplayName = "Jane Doe"
	update.FirstSeenAt = update.FirstSeenAt.AddDate(0, -1, 0)
	update.LastSeenAt = update.LastSeenAt.AddDate(0, 1, 0)

	p2, err := s.UpsertPerson(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, "Jane Doe", p2.DisplayName)
	assert.True(t, p2.FirstSeenAt.Before(p1.FirstSeenAt))
	assert.True(t, p2.LastSeenAt.After(p1.LastSeenAt))

	// An empty display name never clears an established one.
	p3, err := s.UpsertPerson(ctx, testPerson("jane@acme.com"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p3.DisplayName)

	people, err := s.ListPeople(ctx, PersonFilter{})
	require.NoError(t, err)
	assert.Len(t, people, 1)
}

func TestUpsertCompanyFirstNameWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c1, err := s.UpsertCompany(ctx, &model.Company{Domain: "acme.com", DisplayName: "Acme Corp"})
	require.NoError(t, err)

	c2, err := s.UpsertCompany(ctx, &model.Company{Domain: "acme.com", DisplayName: "Acme Incorporated"})
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, "Acme Corp", c2.DisplayName)

	// A name backfills an anonymous company.
	c3, err := s.UpsertCompany(ctx, &model.Company{Domain: "corp.io"})
	require.NoError(t, err)
	assert.Empty(t, c3.DisplayName)
	c4, err := s.UpsertCompany(ctx, &model.Company{Domain: "corp.io", DisplayName: "Corp"})
	require.NoError(t, err)
	assert.Equal(t, "Corp", c4.DisplayName)
}

func TestGetOrCreateExpertiseArea(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a1, err := s.GetOrCreateExpertiseArea(ctx, "Contract Law")
	require.NoError(t, err)
	assert.Equal(t, "contract law", a1.Name)

	a2, err := s.GetOrCreateExpertiseArea(ctx, "  contract law ")
	require.NoError(t, err)
	assert.Equal(t, a1.ID, a2.ID)

	_, err = s.GetOrCreateExpertiseArea(ctx, "  ")
	assert.Error(t, err)
}

func TestInteractionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	person, err := s.UpsertPerson(ctx, testPerson("jane@acme.com"))
	require.NoError(t, err)
	company, err := s.UpsertCompany(ctx, &model.Company{Domain: "acme.com"})
	require.NoError(t, err)

	interaction := &model.Interaction{
		ThreadKey: "t1",
		Subject:   "Vendor contract review",
		Date:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Summary:   "Contract discussion.",
	}
	stored, err := s.UpsertInteraction(ctx, interaction)
	require.NoError(t, err)
	require.NoError(t, s.AddInteractionParticipant(ctx, stored.ID, person.ID, "sender"))
	require.NoError(t, s.AddInteractionCompany(ctx, stored.ID, company.ID))

	area, err := s.GetOrCreateExpertiseArea(ctx, "contract law")
	require.NoError(t, err)
	require.NoError(t, s.AddExpertiseAttribution(ctx, person.ID, area.ID, 0.9, "t1"))

	listed, err := s.ListInteractions(ctx, InteractionFilter{PersonEmail: "jane@acme.com"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "t1", listed[0].ThreadKey)
	assert.Equal(t, "Contract discussion.", listed[0].Summary)

	expertise, err := s.ListExpertise(ctx, person.ID)
	require.NoError(t, err)
	require.Len(t, expertise, 1)
	assert.Equal(t, "jane@acme.com", expertise[0].PersonEmail)
	assert.Equal(t, "contract law", expertise[0].Area)
	assert.InDelta(t, 0.9, expertise[0].Confidence, 0.001)
}

func TestUpsertRelationshipsMerges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 0, 20)

	require.NoError(t, s.UpsertRelationships(ctx, []model.Relationship{
		{PersonAEmail: "alice@acme.com", PersonBEmail: "bob@corp.io", MessageCount: 2, FirstInteraction: first.AddDate(0, 0, 5), LastInteraction: first.AddDate(0, 0, 5)},
	}))
	require.NoError(t, s.UpsertRelationships(ctx, []model.Relationship{
		{PersonAEmail: "alice@acme.com", PersonBEmail: "bob@corp.io", MessageCount: 3, FirstInteraction: first, LastInteraction: last},
	}))

	rels, err := s.ListRelationships(ctx, RelationshipFilter{PersonEmail: "bob@corp.io"})
	require.NoError(t, err)
	require.Len(t, rels, 1)

	assert.Equal(t, 5, rels[0].MessageCount)
	assert.True(t, rels[0].FirstInteraction.Equal(first))
	assert.True(t, rels[0].LastInteraction.Equal(last))
}

func TestMarkEmailAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkEmail(ctx, "m1", model.EmailOutcome{Status: model.EmailStatusProcessed}))
	require.NoError(t, s.MarkEmail(ctx, "m2", model.EmailOutcome{Status: model.EmailStatusFiltered, Reason: string(model.FilterReasonSenderPattern)}))
	// Overwriting an outcome is allowed.
	require.NoError(t, s.MarkEmail(ctx, "m1", model.EmailOutcome{Status: model.EmailStatusProcessed}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EmailsProcessed)
	assert.Equal(t, 1, stats.EmailsFiltered)
}

// Reprocessing the same batch must not grow the graph.
func TestReprocessingIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ingest := func() {
		person, err := s.UpsertPerson(ctx, testPerson("jane@acme.com"))
		require.NoError(t, err)
		company, err := s.UpsertCompany(ctx, &model.Company{Domain: "acme.com", DisplayName: "Acme"})
		require.NoError(t, err)
		interaction, err := s.UpsertInteraction(ctx, &model.Interaction{ThreadKey: "t1", Subject: "Hello"})
		require.NoError(t, err)
		require.NoError(t, s.AddInteractionParticipant(ctx, interaction.ID, person.ID, "sender"))
		require.NoError(t, s.AddInteractionCompany(ctx, interaction.ID, company.ID))
		area, err := s.GetOrCreateExpertiseArea(ctx, "sales")
		require.NoError(t, err)
		require.NoError(t, s.AddExpertiseAttribution(ctx, person.ID, area.ID, 0.7, "t1"))
		require.NoError(t, s.MarkEmail(ctx, "m1", model.EmailOutcome{Status: model.EmailStatusProcessed}))
	}

	ingest()
	before, err := s.Stats(ctx)
	require.NoError(t, err)

	ingest()
	after, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestGetPersonMissing(t *testing.T) {
	s := newTestStore(t)

	p, err := s.GetPerson(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle-db", "dsn", nil)
	assert.Error(t, err)
}
