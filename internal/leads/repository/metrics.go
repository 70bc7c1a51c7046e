package repository

import (
	"context"

	"outreach_backend/internal/leads/domain"
)

func (r *Repository) CountLeadsByStatus(ctx context.Context) (map[domain.LeadStatus]int, error) {
	rows, err := r.q.Query(ctx, `SELECT lead_status, COUNT(*) FROM leads GROUP BY lead_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.LeadStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.LeadStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *Repository) CountDraftsByStatus(ctx context.Context) (map[domain.DraftStatus]int, error) {
	rows, err := r.q.Query(ctx, `SELECT status, COUNT(*) FROM outreach_drafts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.DraftStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.DraftStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *Repository) CountReplies(ctx context.Context) (ReplyCounts, error) {
	var c ReplyCounts
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE reply_type = 'positive') FROM replies
	`).Scan(&c.Total, &c.Positive)
	return c, err
}

func (r *Repository) SumPipelineROI(ctx context.Context) (int, error) {
	statuses := make([]string, 0, len(domain.PipelineStatuses))
	for _, s := range domain.PipelineStatuses {
		statuses = append(statuses, string(s))
	}

	var total int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(roi_estimate_monthly), 0)::int FROM leads WHERE lead_status = ANY($1)
	`, statuses).Scan(&total)
	return total, err
}

func (r *Repository) ConversionStats(ctx context.Context) (ConversionStats, error) {
	var s ConversionStats
	err := r.q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'won'),
			COUNT(*) FILTER (WHERE status = 'lost'),
			COALESCE(SUM(deal_value) FILTER (WHERE status = 'won'), 0)
		FROM conversions
	`).Scan(&s.Won, &s.Lost, &s.ClosedRevenue)
	return s, err
}
