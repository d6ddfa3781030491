package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/learnhub/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `user_id, full_name, email, phone, address, city, state, country,
		        date_of_birth, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	p := &model.Profile{}
	var dob sql.NullTime
	if err := row.Scan(
		&p.UserID, &p.FullName, &p.Email, &p.Phone, &p.Address, &p.City, &p.State, &p.Country,
		&dob, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.DateOfBirth = nullTimePtr(dob)
	return p, nil
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return p, nil
}

// Upsert はuser_idをキーにプロフィールを作成または更新する。
// xmax = 0 は当該行がこの文でINSERTされたことを示す。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, p *model.Profile) (bool, error) {
	var created bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (user_id, full_name, email, phone, address, city, state, country, date_of_birth)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO UPDATE SET
		     full_name = EXCLUDED.full_name,
		     email = EXCLUDED.email,
		     phone = EXCLUDED.phone,
		     address = EXCLUDED.address,
		     city = EXCLUDED.city,
		     state = EXCLUDED.state,
		     country = EXCLUDED.country,
		     date_of_birth = EXCLUDED.date_of_birth,
		     updated_at = now()
		 RETURNING created_at, updated_at, (xmax = 0)`,
		p.UserID, p.FullName, p.Email, p.Phone, p.Address, p.City, p.State, p.Country,
		timePtrValue(p.DateOfBirth),
	).Scan(&p.CreatedAt, &p.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return created, nil
}

// ListAll は全プロフィールをcreated_at降順で返す。
func (r *PostgresProfileRepo) ListAll(ctx context.Context) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC, user_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
