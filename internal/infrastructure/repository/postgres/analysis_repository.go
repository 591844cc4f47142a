package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/verilens/verilens/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *AnalysisRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	verdict TEXT NOT NULL,
	confidence INTEGER NOT NULL DEFAULT 0,
	language TEXT NOT NULL DEFAULT 'en',
	summary TEXT,
	recommendation TEXT,
	forensic_notes TEXT,
	indicators JSONB NOT NULL DEFAULT '[]'::jsonb,
	annotations JSONB NOT NULL DEFAULT '[]'::jsonb,
	technical_details JSONB NOT NULL DEFAULT '{}'::jsonb,
	analysis_stages JSONB NOT NULL DEFAULT '[]'::jsonb,
	preview TEXT,
	preview_type TEXT,
	media_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
	share_id TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_share_id ON analyses(share_id) WHERE share_id IS NOT NULL;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const analysisColumns = `id, user_id, file_type, file_name, file_size, verdict, confidence, language,
summary, recommendation, forensic_notes, indicators, annotations, technical_details, analysis_stages,
preview, preview_type, media_duration, share_id, created_at`

func (r *AnalysisRepository) Create(ctx context.Context, result *domain.AnalysisResult) error {
	indicators, err := json.Marshal(result.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	annotations, err := json.Marshal(result.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}
	technical, err := json.Marshal(result.Technical)
	if err != nil {
		return fmt.Errorf("marshal technical details: %w", err)
	}
	stages, err := json.Marshal(result.Stages)
	if err != nil {
		return fmt.Errorf("marshal analysis stages: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analyses (
	id, user_id, file_type, file_name, file_size, verdict, confidence, language,
	summary, recommendation, forensic_notes, indicators, annotations, technical_details, analysis_stages,
	preview, preview_type, media_duration, share_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
`,
		result.ID, result.UserID, string(result.FileType), result.FileName, result.FileSize,
		string(result.Verdict), result.Confidence, string(result.Language),
		result.Summary, result.Recommendation, result.ForensicNotes,
		indicators, annotations, technical, stages,
		result.Preview, result.PreviewType, result.MediaDuration,
		nullableText(result.ShareID), result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id, ownerID string) (*domain.AnalysisResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE id = $1
`, id)

	result, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "repo.get", fmt.Errorf("analysis %s", id))
		}
		return nil, err
	}
	if result.UserID != ownerID {
		return nil, domain.WrapError(domain.ErrForbidden, "repo.get", fmt.Errorf("analysis %s", id))
	}
	return result, nil
}

// GetForAudit loads a result by id without owner scoping, for the worker
// consuming completion events.
func (r *AnalysisRepository) GetForAudit(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE id = $1
`, id)

	result, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "repo.audit", fmt.Errorf("analysis %s", id))
		}
		return nil, err
	}
	return result, nil
}

func (r *AnalysisRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.AnalysisResult, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE user_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	results := make([]domain.AnalysisResult, 0, limit)
	for rows.Next() {
		result, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate analyses: %w", err)
	}
	return results, total, nil
}

// AssignShareID sets the share id only when none exists yet; COALESCE makes
// concurrent mints converge on whichever token landed first.
func (r *AnalysisRepository) AssignShareID(ctx context.Context, id, ownerID, shareID string) (string, error) {
	var effective string
	err := r.db.QueryRowContext(ctx, `
UPDATE analyses
SET share_id = COALESCE(share_id, $3)
WHERE id = $1 AND user_id = $2
RETURNING share_id
`, id, ownerID, shareID).Scan(&effective)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", r.resolveAccessError(ctx, "repo.share", id, ownerID)
		}
		return "", fmt.Errorf("assign share id: %w", err)
	}
	return effective, nil
}

func (r *AnalysisRepository) GetByShareID(ctx context.Context, shareID string) (*domain.AnalysisResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE share_id = $1
`, shareID)

	result, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "repo.shared", fmt.Errorf("share %s", shareID))
		}
		return nil, err
	}
	return result, nil
}

func (r *AnalysisRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM analyses WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete analysis rows affected: %w", err)
	}
	if affected == 0 {
		return r.resolveAccessError(ctx, "repo.delete", id, ownerID)
	}
	return nil
}

func (r *AnalysisRepository) Stats(ctx context.Context, ownerID string) (domain.Stats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT verdict, file_type, COUNT(*)
FROM analyses
WHERE user_id = $1
GROUP BY verdict, file_type
`, ownerID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := domain.Stats{ByType: map[domain.MediaType]int{}}
	for rows.Next() {
		var verdict, fileType string
		var count int
		if err := rows.Scan(&verdict, &fileType, &count); err != nil {
			return domain.Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		stats.Total += count
		stats.ByType[domain.MediaType(fileType)] += count
		switch domain.Verdict(verdict) {
		case domain.VerdictAuthentic:
			stats.Authentic += count
		case domain.VerdictSuspicious:
			stats.Suspicious += count
		case domain.VerdictLikelyFake:
			stats.LikelyFake += count
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// resolveAccessError tells a missing record apart from someone else's record
// after an owner-scoped statement matched nothing.
func (r *AnalysisRepository) resolveAccessError(ctx context.Context, operation, id, ownerID string) error {
	var owner string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM analyses WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("analysis %s", id))
	}
	if err != nil {
		return fmt.Errorf("resolve analysis owner: %w", err)
	}
	if owner != ownerID {
		return domain.WrapError(domain.ErrForbidden, operation, fmt.Errorf("analysis %s", id))
	}
	return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("analysis %s", id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	var fileType, verdict, language string
	var summary, recommendation, forensicNotes, preview, previewType, shareID sql.NullString
	var indicators, annotations, technical, stages []byte

	err := row.Scan(
		&result.ID, &result.UserID, &fileType, &result.FileName, &result.FileSize,
		&verdict, &result.Confidence, &language,
		&summary, &recommendation, &forensicNotes,
		&indicators, &annotations, &technical, &stages,
		&preview, &previewType, &result.MediaDuration, &shareID, &result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	if err := json.Unmarshal(indicators, &result.Indicators); err != nil {
		return nil, fmt.Errorf("unmarshal indicators: %w", err)
	}
	if err := json.Unmarshal(annotations, &result.Annotations); err != nil {
		return nil, fmt.Errorf("unmarshal annotations: %w", err)
	}
	if err := json.Unmarshal(technical, &result.Technical); err != nil {
		return nil, fmt.Errorf("unmarshal technical details: %w", err)
	}
	if err := json.Unmarshal(stages, &result.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal analysis stages: %w", err)
	}

	result.FileType = domain.MediaType(fileType)
	result.Verdict = domain.Verdict(verdict)
	result.Language = domain.Language(language)
	result.Summary = summary.String
	result.Recommendation = recommendation.String
	result.ForensicNotes = forensicNotes.String
	result.Preview = preview.String
	result.PreviewType = previewType.String
	result.ShareID = shareID.String
	return &result, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
