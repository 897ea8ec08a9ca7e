package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresRepository persists submissions in PostgreSQL via pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const submissionColumns = `id, public_id, customer_email, card_name, card_series,
	card_year, grading_type, card_source, status, comments, created_at, updated_at`

// Create stores a new submission.
func (r *PostgresRepository) Create(ctx context.Context, sub *Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	if !sub.Status.Valid() {
		return ErrInvalidStatus
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	sub.PublicID = strings.ToUpper(sub.PublicID)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.PublicID, strings.ToLower(sub.CustomerEmail), sub.CardName,
		sub.CardSeries, sub.CardYear, sub.GradingType, sub.CardSource,
		string(sub.Status), sub.Comments, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetByPublicID returns the submission with the given public id.
func (r *PostgresRepository) GetByPublicID(ctx context.Context, publicID string) (*Submission, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions WHERE public_id = $1`, strings.ToUpper(publicID))
	return scanSubmission(row)
}

// List returns all submissions, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// UpdateStatus sets a new status and optional comments.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, publicID string, status Status, comments string) (*Submission, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE submissions
		SET status = $2,
		    comments = CASE WHEN $3 = '' THEN comments ELSE $3 END,
		    updated_at = now()
		WHERE public_id = $1
		RETURNING `+submissionColumns,
		strings.ToUpper(publicID), string(status), comments)
	return scanSubmission(row)
}

// PutVideo stores proof-video metadata, replacing any previous recording.
func (r *PostgresRepository) PutVideo(ctx context.Context, video Video) error {
	if video.UploadedAt.IsZero() {
		video.UploadedAt = time.Now().UTC()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO videos (submission_public_id, file_size, duration_seconds, started_at, uploaded_at)
		SELECT public_id, $2, $3, $4, $5 FROM submissions WHERE public_id = $1
		ON CONFLICT (submission_public_id) DO UPDATE
		SET file_size = EXCLUDED.file_size,
		    duration_seconds = EXCLUDED.duration_seconds,
		    started_at = EXCLUDED.started_at,
		    uploaded_at = EXCLUDED.uploaded_at`,
		strings.ToUpper(video.SubmissionID), video.FileSize, video.Duration,
		video.StartedAt, video.UploadedAt)
	if err != nil {
		return fmt.Errorf("upsert video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetVideo returns proof-video metadata for a submission.
func (r *PostgresRepository) GetVideo(ctx context.Context, publicID string) (*Video, error) {
	var video Video
	err := r.pool.QueryRow(ctx, `
		SELECT submission_public_id, file_size, duration_seconds, started_at, uploaded_at
		FROM videos WHERE submission_public_id = $1`, strings.ToUpper(publicID)).
		Scan(&video.SubmissionID, &video.FileSize, &video.Duration,
			&video.StartedAt, &video.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	return &video, nil
}

func scanSubmission(row pgx.Row) (*Submission, error) {
	var sub Submission
	var status string
	err := row.Scan(&sub.ID, &sub.PublicID, &sub.CustomerEmail, &sub.CardName,
		&sub.CardSeries, &sub.CardYear, &sub.GradingType, &sub.CardSource,
		&status, &sub.Comments, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub.Status = Status(status)
	return &sub, nil
}
