package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/growthco/mailgraph/internal/model"
	"github.com/growthco/mailgraph/internal/oracle"
	"github.com/growthco/mailgraph/internal/store"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Extract(ctx context.Context, threadText string) (*oracle.Result, error) {
	args := m.Called(ctx, threadText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.Result), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertPerson(ctx context.Context, person *model.Person) (*model.Person, error) {
	args := m.Called(ctx, person)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Person), args.Error(1)
}

func (m *mockStore) UpsertCompany(ctx context.Context, company *model.Company) (*model.Company, error) {
	args := m.Called(ctx, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockStore) GetOrCreateExpertiseArea(ctx context.Context, name string) (*model.ExpertiseArea, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExpertiseArea), args.Error(1)
}

func (m *mockStore) UpsertInteraction(ctx context.Context, interaction *model.Interaction) (*model.Interaction, error) {
	args := m.Called(ctx, interaction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Interaction), args.Error(1)
}

func (m *mockStore) AddInteractionParticipant(ctx context.Context, interactionID, personID, role string) error {
	return m.Called(ctx, interactionID, personID, role).Error(0)
}

func (m *mockStore) AddInteractionCompany(ctx context.Context, interactionID, companyID string) error {
	return m.Called(ctx, interactionID, companyID).Error(0)
}

func (m *mockStore) AddExpertiseAttribution(ctx context.Context, personID, areaID string, confidence float64, sourceThreadKey string) error {
	return m.Called(ctx, personID, areaID, confidence, sourceThreadKey).Error(0)
}

func (m *mockStore) UpsertRelationships(ctx context.Context, rels []model.Relationship) error {
	return m.Called(ctx, rels).Error(0)
}

func (m *mockStore) MarkEmail(ctx context.Context, emailID string, outcome model.EmailOutcome) error {
	return m.Called(ctx, emailID, outcome).Error(0)
}

func (m *mockStore) ListPeople(ctx context.Context, filter store.PersonFilter) ([]model.Person, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Person), args.Error(1)
}

func (m *mockStore) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Person), args.Error(1)
}

func (m *mockStore) ListExpertise(ctx context.Context, personID string) ([]model.ExpertiseAttribution, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExpertiseAttribution), args.Error(1)
}

func (m *mockStore) ListInteractions(ctx context.Context, filter store.InteractionFilter) ([]model.Interaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Interaction), args.Error(1)
}

func (m *mockStore) ListRelationships(ctx context.Context, filter store.RelationshipFilter) ([]model.Relationship, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Relationship), args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context) (*store.GraphStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.GraphStats), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
