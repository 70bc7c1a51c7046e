package repository

import (
	"context"
	"errors"
	"strings"

	"outreach_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL record store.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var _ Store = (*Repository)(nil)

// New creates a Repository backed by the pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// WithTx runs fn inside one transaction. Nested calls reuse the outer one.
func (r *Repository) WithTx(ctx context.Context, fn func(q Queries) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Repository{pool: r.pool, q: tx, inTx: true}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// =====================================
// Leads
// =====================================

const leadColumns = `
	id, business_name, owner_name, email, phone, category, metro, rating, review_count,
	has_website, website_url, external_profile_link, source, qualification_score,
	roi_estimate_monthly, review_themes, last_review_date, review_excerpt,
	review_excerpt_author, review_excerpt_date, tier, preview_url, preview_path,
	lead_status, manual_override, human_notes, disqualify_reason, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		l      domain.Lead
		tier   string
		status string
	)
	err := row.Scan(
		&l.ID, &l.BusinessName, &l.OwnerName, &l.Email, &l.Phone, &l.Category, &l.Metro,
		&l.Rating, &l.ReviewCount, &l.HasWebsite, &l.WebsiteURL, &l.ExternalProfileLink,
		&l.Source, &l.QualificationScore, &l.ROIEstimateMonthly, &l.ReviewThemes,
		&l.LastReviewDate, &l.ReviewExcerpt, &l.ReviewExcerptAuthor, &l.ReviewExcerptDate,
		&tier, &l.PreviewURL, &l.PreviewPath, &status, &l.ManualOverride, &l.HumanNotes,
		&l.DisqualifyReason, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	l.Tier = domain.Tier(tier)
	l.Status = domain.LeadStatus(status)
	return l, nil
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func themes(l domain.Lead) []string {
	if l.ReviewThemes == nil {
		return []string{}
	}
	return l.ReviewThemes
}

func (r *Repository) InsertLead(ctx context.Context, l domain.Lead) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		ON CONFLICT DO NOTHING
	`,
		l.ID, l.BusinessName, l.OwnerName, l.Email, l.Phone, l.Category, l.Metro, l.Rating,
		l.ReviewCount, l.HasWebsite, l.WebsiteURL, l.ExternalProfileLink, l.Source,
		l.QualificationScore, l.ROIEstimateMonthly, themes(l), l.LastReviewDate,
		l.ReviewExcerpt, l.ReviewExcerptAuthor, l.ReviewExcerptDate, string(l.Tier),
		l.PreviewURL, l.PreviewPath, string(l.Status), l.ManualOverride, l.HumanNotes,
		l.DisqualifyReason, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return scanLead(r.q.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

func (r *Repository) LockLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return scanLead(r.q.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) UpdateLead(ctx context.Context, l domain.Lead) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE leads SET
			owner_name = $2, email = $3, phone = $4, rating = $5, review_count = $6,
			has_website = $7, website_url = $8, qualification_score = $9,
			roi_estimate_monthly = $10, review_themes = $11, tier = $12, preview_url = $13,
			preview_path = $14, lead_status = $15, manual_override = $16, human_notes = $17,
			disqualify_reason = $18, updated_at = $19
		WHERE id = $1
	`,
		l.ID, l.OwnerName, l.Email, l.Phone, l.Rating, l.ReviewCount, l.HasWebsite,
		l.WebsiteURL, l.QualificationScore, l.ROIEstimateMonthly, themes(l), string(l.Tier),
		l.PreviewURL, l.PreviewPath, string(l.Status), l.ManualOverride, l.HumanNotes,
		l.DisqualifyReason, l.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lead_status = $1 AND manual_override = false
		ORDER BY qualification_score DESC, seq ASC
		LIMIT NULLIF($2, 0)
	`, string(status), max(limit, 0))
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

func (r *Repository) LeadExists(ctx context.Context, businessName, metro, email string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE (business_name = $1 AND metro = $2)
			   OR ($3 <> '' AND lower(email) = lower($3))
		)
	`, businessName, metro, strings.TrimSpace(email)).Scan(&exists)
	return exists, err
}

func (r *Repository) FindLeadIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.q.QueryRow(ctx, `
		SELECT id FROM leads WHERE email <> '' AND lower(email) = lower($1) LIMIT 1
	`, strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return id, err
}

// =====================================
// Drafts
// =====================================

const draftColumns = `
	d.id, d.lead_id, d.subject, d.body, d.followup_number, d.status, d.scheduled_for,
	d.sent_at, d.message_id, d.error, d.created_at`

func scanDraft(row pgx.Row, extra ...any) (domain.Draft, error) {
	var (
		d      domain.Draft
		status string
	)
	dest := []any{
		&d.ID, &d.LeadID, &d.Subject, &d.Body, &d.FollowupNumber, &status, &d.ScheduledFor,
		&d.SentAt, &d.MessageID, &d.Error, &d.CreatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Draft{}, ErrNotFound
	}
	if err != nil {
		return domain.Draft{}, err
	}
	d.Status = domain.DraftStatus(status)
	return d, nil
}

func (r *Repository) InsertDraft(ctx context.Context, d domain.Draft) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO outreach_drafts (
			id, lead_id, subject, body, followup_number, status, scheduled_for, sent_at,
			message_id, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, d.ID, d.LeadID, d.Subject, d.Body, d.FollowupNumber, string(d.Status), d.ScheduledFor,
		d.SentAt, d.MessageID, d.Error, d.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) GetDraft(ctx context.Context, id uuid.UUID) (domain.Draft, error) {
	return scanDraft(r.q.QueryRow(ctx, `SELECT `+draftColumns+` FROM outreach_drafts d WHERE d.id = $1`, id))
}

func (r *Repository) LockDraft(ctx context.Context, id uuid.UUID) (domain.Draft, error) {
	return scanDraft(r.q.QueryRow(ctx, `SELECT `+draftColumns+` FROM outreach_drafts d WHERE d.id = $1 FOR UPDATE`, id))
}

func (r *Repository) UpdateDraft(ctx context.Context, d domain.Draft) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE outreach_drafts SET
			subject = $2, body = $3, status = $4, scheduled_for = $5, sent_at = $6,
			message_id = $7, error = $8
		WHERE id = $1
	`, d.ID, d.Subject, d.Body, string(d.Status), d.ScheduledFor, d.SentAt, d.MessageID, d.Error)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListDraftsByStatus(ctx context.Context, status domain.DraftStatus, limit int) ([]domain.DraftWithLead, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+draftColumns+`, l.business_name, l.email, l.tier, l.manual_override
		FROM outreach_drafts d
		JOIN leads l ON l.id = d.lead_id
		WHERE d.status = $1
		ORDER BY l.qualification_score DESC, d.seq ASC
		LIMIT NULLIF($2, 0)
	`, string(status), max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.DraftWithLead, 0)
	for rows.Next() {
		var (
			item domain.DraftWithLead
			tier string
		)
		d, err := scanDraft(rows, &item.BusinessName, &item.Email, &tier, &item.ManualOverride)
		if err != nil {
			return nil, err
		}
		item.Draft = d
		item.Tier = domain.Tier(tier)
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) ListDraftsForLead(ctx context.Context, leadID uuid.UUID) ([]domain.Draft, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+draftColumns+` FROM outreach_drafts d WHERE d.lead_id = $1 ORDER BY d.seq ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Draft, 0)
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) CountDraftsForLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM outreach_drafts WHERE lead_id = $1`, leadID).Scan(&n)
	return n, err
}

func (r *Repository) OpenDraftExists(ctx context.Context, leadID uuid.UUID, followup int) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM outreach_drafts
			WHERE lead_id = $1 AND followup_number = $2 AND status NOT IN ('cancelled', 'failed')
		)
	`, leadID, followup).Scan(&exists)
	return exists, err
}

func (r *Repository) FindSentDraftByMessageID(ctx context.Context, messageID string) (domain.Draft, error) {
	if strings.TrimSpace(messageID) == "" {
		return domain.Draft{}, ErrNotFound
	}
	return scanDraft(r.q.QueryRow(ctx, `
		SELECT `+draftColumns+` FROM outreach_drafts d WHERE d.message_id = $1 AND d.status = 'sent'
	`, messageID))
}

func (r *Repository) CancelPendingDrafts(ctx context.Context, leadID uuid.UUID) (int, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE outreach_drafts SET status = 'cancelled'
		WHERE lead_id = $1 AND status IN ('draft', 'approved')
	`, leadID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// =====================================
// Replies & conversions
// =====================================

func (r *Repository) InsertReply(ctx context.Context, rep domain.Reply) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO replies (id, lead_id, from_email, subject, in_reply_to, raw_body, reply_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rep.ID, rep.LeadID, rep.FromEmail, rep.Subject, rep.InReplyTo, rep.RawBody, string(rep.Type), rep.CreatedAt)
	return err
}

func (r *Repository) ListReplies(ctx context.Context, limit int) ([]domain.ReplyWithLead, error) {
	rows, err := r.q.Query(ctx, `
		SELECT r.id, r.lead_id, r.from_email, r.subject, r.in_reply_to, r.raw_body, r.reply_type,
			r.created_at, l.business_name, l.lead_status
		FROM replies r
		JOIN leads l ON l.id = r.lead_id
		ORDER BY r.created_at DESC
		LIMIT NULLIF($1, 0)
	`, max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReplyWithLead, 0)
	for rows.Next() {
		var (
			item       domain.ReplyWithLead
			replyType  string
			leadStatus string
		)
		if err := rows.Scan(&item.ID, &item.LeadID, &item.FromEmail, &item.Subject, &item.InReplyTo,
			&item.RawBody, &replyType, &item.CreatedAt, &item.BusinessName, &leadStatus); err != nil {
			return nil, err
		}
		item.Type = domain.ReplyType(replyType)
		item.LeadStatus = domain.LeadStatus(leadStatus)
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) InsertConversion(ctx context.Context, c domain.Conversion) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO conversions (id, lead_id, deal_value, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.LeadID, c.DealValue, string(c.Status), c.CreatedAt)
	return err
}
