package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/growthco/mailgraph/internal/model"
)

// PersonFilter specifies criteria for listing people.
type PersonFilter struct {
	CompanyDomain string `json:"company_domain,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// InteractionFilter specifies criteria for listing interactions.
type InteractionFilter struct {
	PersonEmail string `json:"person_email,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// RelationshipFilter specifies criteria for listing relationships.
type RelationshipFilter struct {
	PersonEmail string `json:"person_email,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// GraphStats summarizes the persisted graph.
type GraphStats struct {
	People          int `json:"people"`
	Companies       int `json:"companies"`
	Interactions    int `json:"interactions"`
	Relationships   int `json:"relationships"`
	ExpertiseAreas  int `json:"expertise_areas"`
	EmailsProcessed int `json:"emails_processed"`
	EmailsFiltered  int `json:"emails_filtered"`
}

// Store defines the persistence interface for the relationship graph.
// All Upsert/GetOrCreate operations are idempotent: reprocessing the
// same input leaves counts unchanged.
type Store interface {
	// Entities
	UpsertPerson(ctx context.Context, person *model.Person) (*model.Person, error)
	UpsertCompany(ctx context.Context, company *model.Company) (*model.Company, error)
	GetOrCreateExpertiseArea(ctx context.Context, name string) (*model.ExpertiseArea, error)

	// Interactions
	UpsertInteraction(ctx context.Context, interaction *model.Interaction) (*model.Interaction, error)
	AddInteractionParticipant(ctx context.Context, interactionID, personID, role string) error
	AddInteractionCompany(ctx context.Context, interactionID, companyID string) error
	AddExpertiseAttribution(ctx context.Context, personID, areaID string, confidence float64, sourceThreadKey string) error

	// Relationships
	UpsertRelationships(ctx context.Context, rels []model.Relationship) error

	// Email outcomes
	MarkEmail(ctx context.Context, emailID string, outcome model.EmailOutcome) error

	// Queries
	ListPeople(ctx context.Context, filter PersonFilter) ([]model.Person, error)
	GetPerson(ctx context.Context, personID string) (*model.Person, error)
	ListExpertise(ctx context.Context, personID string) ([]model.ExpertiseAttribution, error)
	ListInteractions(ctx context.Context, filter InteractionFilter) ([]model.Interaction, error)
	ListRelationships(ctx context.Context, filter RelationshipFilter) ([]model.Relationship, error)
	Stats(ctx context.Context) (*GraphStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
