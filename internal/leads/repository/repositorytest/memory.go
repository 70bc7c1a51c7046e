// Package repositorytest provides an in-memory Store for tests of the
// packages built on the leads repository.
package repositorytest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Memory is an in-process repository.Store with the same semantics as
// repository.Repository, for tests.
// Every call, and every WithTx body, runs under one mutex; a WithTx body
// that returns an error has its writes rolled back.
type Memory struct {
	mu sync.Mutex
	st *memState
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{st: &memState{}}
}

type memState struct {
	leads       []domain.Lead
	drafts      []domain.Draft
	replies     []domain.Reply
	conversions []domain.Conversion
}

func (s *memState) clone() *memState {
	c := &memState{
		leads:       make([]domain.Lead, len(s.leads)),
		drafts:      slices.Clone(s.drafts),
		replies:     slices.Clone(s.replies),
		conversions: slices.Clone(s.conversions),
	}
	for i, l := range s.leads {
		c.leads[i] = cloneLead(l)
	}
	return c
}

func cloneLead(l domain.Lead) domain.Lead {
	l.ReviewThemes = slices.Clone(l.ReviewThemes)
	if l.ReviewThemes == nil {
		l.ReviewThemes = []string{}
	}
	return l
}

func (m *Memory) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&memTx{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// memTx implements repository.Queries over the state without locking; callers hold the mutex.
type memTx struct {
	st *memState
}

// nested WithTx inside a transaction reuses it
func (t *memTx) WithTx(_ context.Context, fn func(q repository.Queries) error) error {
	return fn(t)
}

func (t *memTx) leadIndex(id uuid.UUID) int {
	return slices.IndexFunc(t.st.leads, func(l domain.Lead) bool { return l.ID == id })
}

func (t *memTx) draftIndex(id uuid.UUID) int {
	return slices.IndexFunc(t.st.drafts, func(d domain.Draft) bool { return d.ID == id })
}

func (t *memTx) InsertLead(_ context.Context, l domain.Lead) (bool, error) {
	if t.leadIndex(l.ID) >= 0 {
		return false, nil
	}
	for _, existing := range t.st.leads {
		if existing.BusinessName == l.BusinessName && existing.Metro == l.Metro {
			return false, nil
		}
		if l.Email != "" && strings.EqualFold(existing.Email, l.Email) {
			return false, nil
		}
	}
	t.st.leads = append(t.st.leads, cloneLead(l))
	return true, nil
}

func (t *memTx) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	i := t.leadIndex(id)
	if i < 0 {
		return domain.Lead{}, repository.ErrNotFound
	}
	return cloneLead(t.st.leads[i]), nil
}

func (t *memTx) LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return t.GetLead(ctx, id)
}

func (t *memTx) UpdateLead(_ context.Context, l domain.Lead) error {
	i := t.leadIndex(l.ID)
	if i < 0 {
		return repository.ErrNotFound
	}
	prev := t.st.leads[i]
	l.BusinessName, l.Metro, l.Category, l.Source = prev.BusinessName, prev.Metro, prev.Category, prev.Source
	l.ExternalProfileLink, l.CreatedAt = prev.ExternalProfileLink, prev.CreatedAt
	l.LastReviewDate, l.ReviewExcerpt = prev.LastReviewDate, prev.ReviewExcerpt
	l.ReviewExcerptAuthor, l.ReviewExcerptDate = prev.ReviewExcerptAuthor, prev.ReviewExcerptDate
	t.st.leads[i] = cloneLead(l)
	return nil
}

func (t *memTx) ListLeadsByStatus(_ context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	items := make([]domain.Lead, 0)
	for _, l := range t.st.leads {
		if l.Status == status && !l.ManualOverride {
			items = append(items, cloneLead(l))
		}
	}
	// stable keeps insertion order among equal scores
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].QualificationScore > items[j].QualificationScore
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (t *memTx) LeadExists(_ context.Context, businessName, metro, email string) (bool, error) {
	email = strings.TrimSpace(email)
	for _, l := range t.st.leads {
		if l.BusinessName == businessName && l.Metro == metro {
			return true, nil
		}
		if email != "" && strings.EqualFold(l.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) FindLeadIDByEmail(_ context.Context, email string) (uuid.UUID, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return uuid.Nil, repository.ErrNotFound
	}
	for _, l := range t.st.leads {
		if l.Email != "" && strings.EqualFold(l.Email, email) {
			return l.ID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

func (t *memTx) InsertDraft(_ context.Context, d domain.Draft) error {
	if t.leadIndex(d.LeadID) < 0 {
		return repository.ErrNotFound
	}
	for _, existing := range t.st.drafts {
		if existing.ID == d.ID {
			return repository.ErrDuplicate
		}
		if d.Status.IsOpen() && existing.LeadID == d.LeadID &&
			existing.FollowupNumber == d.FollowupNumber && existing.Status.IsOpen() {
			return repository.ErrDuplicate
		}
	}
	t.st.drafts = append(t.st.drafts, d)
	return nil
}

func (t *memTx) GetDraft(_ context.Context, id uuid.UUID) (domain.Draft, error) {
	i := t.draftIndex(id)
	if i < 0 {
		return domain.Draft{}, repository.ErrNotFound
	}
	return t.st.drafts[i], nil
}

func (t *memTx) LockDraft(ctx context.Context, id uuid.UUID) (domain.Draft, error) {
	return t.GetDraft(ctx, id)
}

func (t *memTx) UpdateDraft(_ context.Context, d domain.Draft) error {
	i := t.draftIndex(d.ID)
	if i < 0 {
		return repository.ErrNotFound
	}
	if d.MessageID != "" {
		for j, other := range t.st.drafts {
			if j != i && other.MessageID == d.MessageID {
				return repository.ErrDuplicate
			}
		}
	}
	prev := t.st.drafts[i]
	d.LeadID, d.FollowupNumber, d.CreatedAt = prev.LeadID, prev.FollowupNumber, prev.CreatedAt
	t.st.drafts[i] = d
	return nil
}

func (t *memTx) ListDraftsByStatus(_ context.Context, status domain.DraftStatus, limit int) ([]domain.DraftWithLead, error) {
	type ranked struct {
		item  domain.DraftWithLead
		score int
	}
	matches := make([]ranked, 0)
	for _, d := range t.st.drafts {
		if d.Status != status {
			continue
		}
		l := t.st.leads[t.leadIndex(d.LeadID)]
		matches = append(matches, ranked{
			item: domain.DraftWithLead{
				Draft:          d,
				BusinessName:   l.BusinessName,
				Email:          l.Email,
				Tier:           l.Tier,
				ManualOverride: l.ManualOverride,
			},
			score: l.QualificationScore,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	items := make([]domain.DraftWithLead, 0, len(matches))
	for _, m := range matches {
		items = append(items, m.item)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (t *memTx) ListDraftsForLead(_ context.Context, leadID uuid.UUID) ([]domain.Draft, error) {
	items := make([]domain.Draft, 0)
	for _, d := range t.st.drafts {
		if d.LeadID == leadID {
			items = append(items, d)
		}
	}
	return items, nil
}

func (t *memTx) CountDraftsForLead(_ context.Context, leadID uuid.UUID) (int, error) {
	n := 0
	for _, d := range t.st.drafts {
		if d.LeadID == leadID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) OpenDraftExists(_ context.Context, leadID uuid.UUID, followup int) (bool, error) {
	for _, d := range t.st.drafts {
		if d.LeadID == leadID && d.FollowupNumber == followup && d.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) FindSentDraftByMessageID(_ context.Context, messageID string) (domain.Draft, error) {
	if strings.TrimSpace(messageID) == "" {
		return domain.Draft{}, repository.ErrNotFound
	}
	for _, d := range t.st.drafts {
		if d.Status == domain.DraftStatusSent && d.MessageID == messageID {
			return d, nil
		}
	}
	return domain.Draft{}, repository.ErrNotFound
}

func (t *memTx) CancelPendingDrafts(_ context.Context, leadID uuid.UUID) (int, error) {
	n := 0
	for i := range t.st.drafts {
		if t.st.drafts[i].LeadID == leadID && t.st.drafts[i].Cancel() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertReply(_ context.Context, r domain.Reply) error {
	if t.leadIndex(r.LeadID) < 0 {
		return repository.ErrNotFound
	}
	t.st.replies = append(t.st.replies, r)
	return nil
}

func (t *memTx) ListReplies(_ context.Context, limit int) ([]domain.ReplyWithLead, error) {
	items := make([]domain.ReplyWithLead, 0, len(t.st.replies))
	for i := len(t.st.replies) - 1; i >= 0; i-- {
		r := t.st.replies[i]
		l := t.st.leads[t.leadIndex(r.LeadID)]
		items = append(items, domain.ReplyWithLead{Reply: r, BusinessName: l.BusinessName, LeadStatus: l.Status})
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (t *memTx) InsertConversion(_ context.Context, c domain.Conversion) error {
	if t.leadIndex(c.LeadID) < 0 {
		return repository.ErrNotFound
	}
	t.st.conversions = append(t.st.conversions, c)
	return nil
}

func (t *memTx) CountLeadsByStatus(context.Context) (map[domain.LeadStatus]int, error) {
	counts := make(map[domain.LeadStatus]int)
	for _, l := range t.st.leads {
		counts[l.Status]++
	}
	return counts, nil
}

func (t *memTx) CountDraftsByStatus(context.Context) (map[domain.DraftStatus]int, error) {
	counts := make(map[domain.DraftStatus]int)
	for _, d := range t.st.drafts {
		counts[d.Status]++
	}
	return counts, nil
}

func (t *memTx) CountReplies(context.Context) (repository.ReplyCounts, error) {
	c := repository.ReplyCounts{Total: len(t.st.replies)}
	for _, r := range t.st.replies {
		if r.Type == domain.ReplyPositive {
			c.Positive++
		}
	}
	return c, nil
}

func (t *memTx) SumPipelineROI(context.Context) (int, error) {
	total := 0
	for _, l := range t.st.leads {
		if slices.Contains(domain.PipelineStatuses, l.Status) {
			total += l.ROIEstimateMonthly
		}
	}
	return total, nil
}

func (t *memTx) ConversionStats(context.Context) (repository.ConversionStats, error) {
	var s repository.ConversionStats
	for _, c := range t.st.conversions {
		switch c.Status {
		case domain.ConversionWon:
			s.Won++
			s.ClosedRevenue += c.DealValue
		case domain.ConversionLost:
			s.Lost++
		}
	}
	return s, nil
}
