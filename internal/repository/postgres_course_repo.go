package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/learnhub/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

const courseColumns = `id, title, description, category, level, price, duration_weeks, is_active, created_at`

func scanCourse(row rowScanner) (*model.Course, error) {
	c := &model.Course{}
	if err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Category, &c.Level,
		&c.Price, &c.DurationWeeks, &c.IsActive, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return c, nil
}

// buildActiveCourseQuery はフィルタ条件からSELECT文と引数を組み立てる。
func buildActiveCourseQuery(filter model.CourseFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + courseColumns + ` FROM courses WHERE is_active`)

	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		fmt.Fprintf(&sb, " AND category = $%d", len(args))
	}
	if filter.Level != "" {
		args = append(args, string(filter.Level))
		fmt.Fprintf(&sb, " AND level = $%d", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		fmt.Fprintf(&sb, " AND title ILIKE $%d", len(args))
	}
	sb.WriteString(" ORDER BY category ASC, title ASC, id ASC")
	return sb.String(), args
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListActive は受付中のコースをcategory, title, idの昇順で返す。
func (r *PostgresCourseRepo) ListActive(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error) {
	query, args := buildActiveCourseQuery(filter)
	return r.list(ctx, query, args...)
}

// ListAll は受付停止中を含む全コースを返す。
func (r *PostgresCourseRepo) ListAll(ctx context.Context) ([]*model.Course, error) {
	return r.list(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY category ASC, title ASC, id ASC`)
}

func (r *PostgresCourseRepo) list(ctx context.Context, query string, args ...any) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
