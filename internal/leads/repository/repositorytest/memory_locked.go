package repositorytest

import (
	"context"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"

	"github.com/google/uuid"
)

func locked[T any](m *Memory, fn func(t *memTx) (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{st: m.st})
}

func lockedErr(m *Memory, fn func(t *memTx) error) error {
	_, err := locked(m, func(t *memTx) (struct{}, error) { return struct{}{}, fn(t) })
	return err
}

func (m *Memory) InsertLead(ctx context.Context, l domain.Lead) (bool, error) {
	return locked(m, func(t *memTx) (bool, error) { return t.InsertLead(ctx, l) })
}

func (m *Memory) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return locked(m, func(t *memTx) (domain.Lead, error) { return t.GetLead(ctx, id) })
}

func (m *Memory) LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return m.GetLead(ctx, id)
}

func (m *Memory) UpdateLead(ctx context.Context, l domain.Lead) error {
	return lockedErr(m, func(t *memTx) error { return t.UpdateLead(ctx, l) })
}

func (m *Memory) ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	return locked(m, func(t *memTx) ([]domain.Lead, error) { return t.ListLeadsByStatus(ctx, status, limit) })
}

func (m *Memory) LeadExists(ctx context.Context, businessName, metro, email string) (bool, error) {
	return locked(m, func(t *memTx) (bool, error) { return t.LeadExists(ctx, businessName, metro, email) })
}

func (m *Memory) FindLeadIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	return locked(m, func(t *memTx) (uuid.UUID, error) { return t.FindLeadIDByEmail(ctx, email) })
}

func (m *Memory) InsertDraft(ctx context.Context, d domain.Draft) error {
	return lockedErr(m, func(t *memTx) error { return t.InsertDraft(ctx, d) })
}

func (m *Memory) GetDraft(ctx context.Context, id uuid.UUID) (domain.Draft, error) {
	return locked(m, func(t *memTx) (domain.Draft, error) { return t.GetDraft(ctx, id) })
}

func (m *Memory) LockDraft(ctx context.Context, id uuid.UUID) (domain.Draft, error) {
	return m.GetDraft(ctx, id)
}

func (m *Memory) UpdateDraft(ctx context.Context, d domain.Draft) error {
	return lockedErr(m, func(t *memTx) error { return t.UpdateDraft(ctx, d) })
}

func (m *Memory) ListDraftsByStatus(ctx context.Context, status domain.DraftStatus, limit int) ([]domain.DraftWithLead, error) {
	return locked(m, func(t *memTx) ([]domain.DraftWithLead, error) { return t.ListDraftsByStatus(ctx, status, limit) })
}

func (m *Memory) ListDraftsForLead(ctx context.Context, leadID uuid.UUID) ([]domain.Draft, error) {
	return locked(m, func(t *memTx) ([]domain.Draft, error) { return t.ListDraftsForLead(ctx, leadID) })
}

func (m *Memory) CountDraftsForLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	return locked(m, func(t *memTx) (int, error) { return t.CountDraftsForLead(ctx, leadID) })
}

func (m *Memory) OpenDraftExists(ctx context.Context, leadID uuid.UUID, followup int) (bool, error) {
	return locked(m, func(t *memTx) (bool, error) { return t.OpenDraftExists(ctx, leadID, followup) })
}

func (m *Memory) FindSentDraftByMessageID(ctx context.Context, messageID string) (domain.Draft, error) {
	return locked(m, func(t *memTx) (domain.Draft, error) { return t.FindSentDraftByMessageID(ctx, messageID) })
}

func (m *Memory) CancelPendingDrafts(ctx context.Context, leadID uuid.UUID) (int, error) {
	return locked(m, func(t *memTx) (int, error) { return t.CancelPendingDrafts(ctx, leadID) })
}

func (m *Memory) InsertReply(ctx context.Context, r domain.Reply) error {
	return lockedErr(m, func(t *memTx) error { return t.InsertReply(ctx, r) })
}

func (m *Memory) ListReplies(ctx context.Context, limit int) ([]domain.ReplyWithLead, error) {
	return locked(m, func(t *memTx) ([]domain.ReplyWithLead, error) { return t.ListReplies(ctx, limit) })
}

func (m *Memory) InsertConversion(ctx context.Context, c domain.Conversion) error {
	return lockedErr(m, func(t *memTx) error { return t.InsertConversion(ctx, c) })
}

func (m *Memory) CountLeadsByStatus(ctx context.Context) (map[domain.LeadStatus]int, error) {
	return locked(m, func(t *memTx) (map[domain.LeadStatus]int, error) { return t.CountLeadsByStatus(ctx) })
}

func (m *Memory) CountDraftsByStatus(ctx context.Context) (map[domain.DraftStatus]int, error) {
	return locked(m, func(t *memTx) (map[domain.DraftStatus]int, error) { return t.CountDraftsByStatus(ctx) })
}

func (m *Memory) CountReplies(ctx context.Context) (repository.ReplyCounts, error) {
	return locked(m, func(t *memTx) (repository.ReplyCounts, error) { return t.CountReplies(ctx) })
}

func (m *Memory) SumPipelineROI(ctx context.Context) (int, error) {
	return locked(m, func(t *memTx) (int, error) { return t.SumPipelineROI(ctx) })
}

func (m *Memory) ConversionStats(ctx context.Context) (repository.ConversionStats, error) {
	return locked(m, func(t *memTx) (repository.ConversionStats, error) { return t.ConversionStats(ctx) })
}

var (
	_ repository.Store = (*Memory)(nil)
	_ repository.Store = (*memTx)(nil)
)
