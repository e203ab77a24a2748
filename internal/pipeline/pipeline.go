// Package pipeline implements the email relationship-graph extraction
// pipeline: noise filtering, thread grouping, oracle extraction, entity
// resolution, and persistence.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/growthco/mailgraph/internal/model"
	"github.com/growthco/mailgraph/internal/oracle"
	"github.com/growthco/mailgraph/internal/store"
)

// Orchestrator runs the full extraction pipeline. Thread extraction
// fans out across a bounded worker group; a single failing thread never
// fails the run.
type Orchestrator struct {
	filter         *Filter
	oracle         oracle.Oracle
	store          store.Store
	maxConcurrency int
}

func NewOrchestrator(filter *Filter, o oracle.Oracle, st store.Store, maxConcurrency int) *Orchestrator {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Orchestrator{
		filter:         filter,
		oracle:         o,
		store:          st,
		maxConcurrency: maxConcurrency,
	}
}

// Run processes a batch of emails end to end and returns the report.
// A nil email slice is a contract violation; an empty one is a valid
// no-op run.
func (o *Orchestrator) Run(ctx context.Context, emails []model.EmailRecord) (*model.ProcessingReport, error) {
	if emails == nil {
		return nil, eris.New("pipeline: nil email batch")
	}

	report := model.NewProcessingReport(len(emails))

	kept := make([]model.EmailRecord, 0, len(emails))
	for _, email := range emails {
		verdict := o.filter.Classify(email)
		if !verdict.Keep {
			report.FilteredCount++
			report.Outcomes[email.ID] = model.EmailOutcome{
				Status: model.EmailStatusFiltered,
				Reason: string(verdict.Reason),
			}
			continue
		}
		kept = append(kept, email)
	}
	zap.L().Info("pipeline: filtered batch",
		zap.Int("total", len(emails)),
		zap.Int("kept", len(kept)),
		zap.Int("filtered", report.FilteredCount),
	)

	threads := GroupThreads(kept)
	report.ThreadCount = len(threads)

	resolver := NewResolver()
	assembler := NewAssembler(resolver)

	var (
		mu            sync.Mutex
		interactions  []*model.Interaction
		failedThreads = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)
	for _, thread := range threads {
		g.Go(func() error {
			result, err := o.oracle.Extract(gctx, formatThread(thread))
			if err != nil {
				zap.L().Warn("pipeline: extraction failed, building fallback interaction",
					zap.String("thread_key", thread.Key),
					zap.Error(err),
				)
				result = nil
			}

			interaction := assembler.Assemble(thread, result)

			mu.Lock()
			interactions = append(interactions, interaction)
			if interaction.OracleFailed {
				report.ErrorCount++
				failedThreads[thread.Key] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: thread extraction")
	}
	report.InteractionCount = len(interactions)

	for _, thread := range threads {
		outcome := model.EmailOutcome{Status: model.EmailStatusProcessed}
		if failedThreads[thread.Key] {
			outcome.Reason = "oracle-error"
		}
		for _, email := range thread.Emails {
			report.Outcomes[email.ID] = outcome
		}
	}

	relationships := BuildRelationships(kept)

	if o.store != nil {
		o.persist(ctx, resolver, interactions, relationships, threads, report)
	}

	return report, nil
}

// persist writes the resolved graph to the store. Storage failures are
// recorded on the report; they never abort the run.
func (o *Orchestrator) persist(ctx context.Context, resolver *Resolver, interactions []*model.Interaction, relationships []model.Relationship, threads []model.Thread, report *model.ProcessingReport) {
	companyIDs := make(map[string]string)
	for _, company := range resolver.Companies() {
		stored, err := o.store.UpsertCompany(ctx, company)
		if err != nil {
			zap.L().Error("pipeline: persist company", zap.String("domain", company.Domain), zap.Error(err))
			report.ErrorCount++
			continue
		}
		companyIDs[stored.Domain] = stored.ID
	}

	personIDs := make(map[string]string)
	for _, person := range resolver.People() {
		p := *person
		// The resolver tracks company by domain; swap in the store ID.
		p.CompanyID = companyIDs[p.CompanyID]
		stored, err := o.store.UpsertPerson(ctx, &p)
		if err != nil {
			zap.L().Error("pipeline: persist person", zap.String("email", p.PrimaryEmail), zap.Error(err))
			report.ErrorCount++
			continue
		}
		personIDs[stored.PrimaryEmail] = stored.ID
	}

	threadEmails := make(map[string][]string, len(threads))
	for _, thread := range threads {
		for _, email := range thread.Emails {
			threadEmails[thread.Key] = append(threadEmails[thread.Key], email.ID)
		}
	}

	for _, interaction := range interactions {
		if err := o.persistInteraction(ctx, interaction, personIDs, companyIDs); err != nil {
			zap.L().Error("pipeline: persist interaction",
				zap.String("thread_key", interaction.ThreadKey),
				zap.Error(err),
			)
			report.ErrorCount++
			// The thread's emails must not be recorded as processed
			// when their interaction never made it to the store.
			for _, id := range threadEmails[interaction.ThreadKey] {
				report.Outcomes[id] = model.EmailOutcome{Status: model.EmailStatusErrored, Reason: "storage-error"}
			}
		}
	}

	if err := o.store.UpsertRelationships(ctx, relationships); err != nil {
		zap.L().Error("pipeline: persist relationships", zap.Error(err))
		report.ErrorCount++
	}

	for _, thread := range threads {
		for _, email := range thread.Emails {
			outcome := report.Outcomes[email.ID]
			if err := o.store.MarkEmail(ctx, email.ID, outcome); err != nil {
				zap.L().Error("pipeline: mark email", zap.String("email_id", email.ID), zap.Error(err))
				report.Outcomes[email.ID] = model.EmailOutcome{Status: model.EmailStatusErrored}
				report.ErrorCount++
			}
		}
	}
	for id, outcome := range report.Outcomes {
		if outcome.Status != model.EmailStatusFiltered {
			continue
		}
		if err := o.store.MarkEmail(ctx, id, outcome); err != nil {
			zap.L().Error("pipeline: mark filtered email", zap.String("email_id", id), zap.Error(err))
			report.ErrorCount++
		}
	}
}

func (o *Orchestrator) persistInteraction(ctx context.Context, interaction *model.Interaction, personIDs, companyIDs map[string]string) error {
	stored, err := o.store.UpsertInteraction(ctx, interaction)
	if err != nil {
		return err
	}

	for _, participant := range interaction.Participants {
		personID, ok := personIDs[participant.Person.PrimaryEmail]
		if !ok {
			continue
		}
		if err := o.store.AddInteractionParticipant(ctx, stored.ID, personID, participant.Role); err != nil {
			return err
		}
	}

	for _, company := range interaction.Companies {
		companyID, ok := companyIDs[company.Domain]
		if !ok {
			continue
		}
		if err := o.store.AddInteractionCompany(ctx, stored.ID, companyID); err != nil {
			return err
		}
	}

	for _, attr := range interaction.Expertise {
		personID, ok := personIDs[attr.PersonEmail]
		if !ok {
			continue
		}
		area, err := o.store.GetOrCreateExpertiseArea(ctx, attr.Area)
		if err != nil {
			return err
		}
		if err := o.store.AddExpertiseAttribution(ctx, personID, area.ID, attr.Confidence, attr.SourceThreadKey); err != nil {
			return err
		}
	}

	return nil
}

// BuildRelationships derives undirected co-occurrence edges from email
// headers: every pair of addresses on the same email is one message on
// their edge. Pairs are ordered so (a,b) and (b,a) collapse.
func BuildRelationships(emails []model.EmailRecord) []model.Relationship {
	edges := make(map[[2]string]*model.Relationship)

	for _, email := range emails {
		addrs := NormalizeAddressList(append([]string{email.From}, email.Recipients()...))
		seen := make(map[string]bool, len(addrs))
		var participants []string
		for _, a := range addrs {
			if seen[a.Email] {
				continue
			}
			seen[a.Email] = true
			participants = append(participants, a.Email)
		}
		sort.Strings(participants)

		for i := 0; i < len(participants); i++ {
			for j := i + 1; j < len(participants); j++ {
				key := [2]string{participants[i], participants[j]}
				edge, ok := edges[key]
				if !ok {
					edge = &model.Relationship{
						PersonAEmail:     key[0],
						PersonBEmail:     key[1],
						FirstInteraction: email.Date,
						LastInteraction:  email.Date,
					}
					edges[key] = edge
				}
				edge.MessageCount++
				if !email.Date.IsZero() {
					if edge.FirstInteraction.IsZero() || email.Date.Before(edge.FirstInteraction) {
						edge.FirstInteraction = email.Date
					}
					if email.Date.After(edge.LastInteraction) {
						edge.LastInteraction = email.Date
					}
				}
			}
		}
	}

	rels := make([]model.Relationship, 0, len(edges))
	for _, edge := range edges {
		rels = append(rels, *edge)
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].PersonAEmail != rels[j].PersonAEmail {
			return rels[i].PersonAEmail < rels[j].PersonAEmail
		}
		return rels[i].PersonBEmail < rels[j].PersonBEmail
	})
	return rels
}

// formatThread renders a thread as plain text for the oracle.
func formatThread(thread model.Thread) string {
	var b strings.Builder
	for i, email := range thread.Emails {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "From: %s\n", email.From)
		if len(email.To) > 0 {
			fmt.Fprintf(&b, "To: %s\n", strings.Join(email.To, ", "))
		}
		if len(email.Cc) > 0 {
			fmt.Fprintf(&b, "Cc: %s\n", strings.Join(email.Cc, ", "))
		}
		if !email.Date.IsZero() {
			fmt.Fprintf(&b, "Date: %s\n", email.Date.Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(&b, "Subject: %s\n\n%s\n", email.Subject, email.Body)
	}
	return b.String()
}
