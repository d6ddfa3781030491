package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用した問い合わせリポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

const contactColumns = `id, name, email, phone, subject, message, status, created_at, updated_at`

func scanContact(row rowScanner) (*model.ContactSubmission, error) {
	s := &model.ContactSubmission{}
	if err := row.Scan(
		&s.ID, &s.Name, &s.Email, &s.Phone, &s.Subject, &s.Message, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return s, nil
}

// Create は問い合わせを作成する。CreatedAt/UpdatedAtはDBの値で上書きされる。
func (r *PostgresContactRepo) Create(ctx context.Context, s *model.ContactSubmission) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO contact_submissions (id, name, email, phone, subject, message, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Email, s.Phone, s.Subject, s.Message, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact submission: %w", err)
	}
	return nil
}

// FindByID は指定IDの問い合わせを取得する。見つからない場合はnilを返す。
func (r *PostgresContactRepo) FindByID(ctx context.Context, id string) (*model.ContactSubmission, error) {
	s, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contact_submissions WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact submission: %w", err)
	}
	return s, nil
}

// List は問い合わせをcreated_at降順で返す。statusが空の場合は全件。
func (r *PostgresContactRepo) List(ctx context.Context, status model.ContactStatus) ([]*model.ContactSubmission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contact_submissions
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC, id ASC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact submissions: %w", err)
	}
	defer rows.Close()

	var result []*model.ContactSubmission
	for rows.Next() {
		s, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact submission: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact submissions: %w", err)
	}
	return result, nil
}

// UpdateStatus は現在のステータスがfromである場合に限りtoへ更新する。
func (r *PostgresContactRepo) UpdateStatus(ctx context.Context, id string, from, to model.ContactStatus, updatedAt time.Time) (*model.ContactSubmission, error) {
	s, err := scanContact(r.db.QueryRowContext(ctx,
		`UPDATE contact_submissions SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING `+contactColumns,
		id, from, to, updatedAt,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update contact submission status: %w", err)
	}
	return s, nil
}

// compile-time interface check
var _ ContactRepository = (*PostgresContactRepo)(nil)
