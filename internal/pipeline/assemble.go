package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/growthco/mailgraph/internal/model"
	"github.com/growthco/mailgraph/internal/oracle"
)

// Assembler turns threads and oracle results into interactions with
// resolved people and companies. All resolution goes through a shared
// Resolver so identities merge across threads.
type Assembler struct {
	resolver *Resolver
}

func NewAssembler(resolver *Resolver) *Assembler {
	return &Assembler{resolver: resolver}
}

// Assemble builds the interaction for a thread. result may be nil when
// extraction failed; the interaction is still produced from the raw
// email headers so no thread is lost.
func (a *Assembler) Assemble(thread model.Thread, result *oracle.Result) *model.Interaction {
	interaction := &model.Interaction{
		ID:        uuid.NewString(),
		ThreadKey: thread.Key,
		Subject:   thread.Subject(),
	}
	if len(thread.Emails) > 0 {
		interaction.Date = thread.Emails[0].Date
	}

	if result == nil {
		interaction.OracleFailed = true
		a.fillFromHeaders(thread, interaction)
		interaction.Summary = fallbackSummary(interaction)
		return interaction
	}

	interaction.Summary = result.Summary

	seen := make(map[string]bool)
	for _, p := range result.Participants {
		person := a.resolver.ResolvePerson(PersonCandidate{
			Email:       p.Email,
			DisplayName: p.Name,
			SeenAt:      interaction.Date,
		})
		if person == nil || seen[person.PrimaryEmail] {
			continue
		}
		seen[person.PrimaryEmail] = true
		role := p.Role
		if role == "" {
			role = "participant"
		}
		interaction.Participants = append(interaction.Participants, model.Participant{
			Person: person,
			Role:   role,
		})
	}
	// The oracle can miss participants; backfill anyone present in the
	// headers but absent from the result.
	a.fillFromHeaders(thread, interaction)

	companySeen := make(map[string]bool)
	for _, c := range result.Companies {
		company := a.resolver.ResolveCompany(CompanyCandidate{
			Domain:      c.Domain,
			DisplayName: c.Name,
		})
		if company == nil || companySeen[company.Domain] {
			continue
		}
		companySeen[company.Domain] = true
		interaction.Companies = append(interaction.Companies, company)
	}

	for _, claim := range result.ExpertiseClaims {
		person := a.resolver.ResolvePerson(PersonCandidate{
			Email:  claim.PersonEmail,
			SeenAt: interaction.Date,
		})
		if person == nil || claim.Area == "" {
			continue
		}
		interaction.Expertise = append(interaction.Expertise, model.ExpertiseAttribution{
			PersonEmail:     person.PrimaryEmail,
			Area:            claim.Area,
			Confidence:      clampConfidence(claim.Confidence),
			SourceThreadKey: thread.Key,
		})
	}

	if interaction.Summary == "" {
		interaction.Summary = fallbackSummary(interaction)
	}
	return interaction
}

// fillFromHeaders resolves every address appearing in the thread's
// emails and appends any person not already on the interaction.
func (a *Assembler) fillFromHeaders(thread model.Thread, interaction *model.Interaction) {
	present := make(map[string]bool, len(interaction.Participants))
	for _, p := range interaction.Participants {
		present[p.Person.PrimaryEmail] = true
	}

	for _, addr := range thread.Participants {
		person := a.resolver.ResolvePerson(PersonCandidate{
			Email:       addr.Email,
			DisplayName: addr.DisplayName,
			SeenAt:      interaction.Date,
		})
		if person == nil || present[person.PrimaryEmail] {
			continue
		}
		present[person.PrimaryEmail] = true
		interaction.Participants = append(interaction.Participants, model.Participant{
			Person: person,
			Role:   "participant",
		})
	}
}

func fallbackSummary(interaction *model.Interaction) string {
	subject := interaction.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	return fmt.Sprintf("Email thread %q with %d participants", subject, len(interaction.Participants))
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
