package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/learnhub/internal/model"
)

// PostgresEnrollmentRepo はPostgreSQLを使用した受講登録リポジトリ。
type PostgresEnrollmentRepo struct {
	db *sql.DB
}

// NewPostgresEnrollmentRepo はPostgresEnrollmentRepoを生成する。
func NewPostgresEnrollmentRepo(db *sql.DB) *PostgresEnrollmentRepo {
	return &PostgresEnrollmentRepo{db: db}
}

const enrollmentColumns = `id, user_id, course_id, status, progress, enrolled_at, completed_at`

func scanEnrollment(row rowScanner) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var completedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.Progress, &e.EnrolledAt, &completedAt); err != nil {
		return nil, err
	}
	e.CompletedAt = nullTimePtr(completedAt)
	return e, nil
}

// FindByID は指定IDの受講登録を取得する。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}
	return e, nil
}

// FindByUserAndCourse はユーザーとコースの組で受講登録を検索する。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2`,
		userID, courseID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment by user and course: %w", err)
	}
	return e, nil
}

// Create は受講登録を作成する。
// 同時登録の競合は一意制約で解決し、負けた側にはErrDuplicateを返す。
func (r *PostgresEnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, status, progress)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, course_id) DO NOTHING
		 RETURNING enrolled_at`,
		e.ID, e.UserID, e.CourseID, e.Status, e.Progress,
	).Scan(&e.EnrolledAt)
	if err == sql.ErrNoRows {
		return ErrDuplicate
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// ListByUserWithCourse はユーザーの受講登録をコース情報付きでenrolled_at降順に返す。
func (r *PostgresEnrollmentRepo) ListByUserWithCourse(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.user_id, e.course_id, e.status, e.progress, e.enrolled_at, e.completed_at,
		        c.title, c.category, c.level, c.duration_weeks
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 WHERE e.user_id = $1
		 ORDER BY e.enrolled_at DESC, e.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var result []model.EnrollmentWithCourse
	for rows.Next() {
		var ewc model.EnrollmentWithCourse
		var completedAt sql.NullTime
		if err := rows.Scan(
			&ewc.ID, &ewc.UserID, &ewc.CourseID, &ewc.Status, &ewc.Progress, &ewc.EnrolledAt, &completedAt,
			&ewc.CourseTitle, &ewc.CourseCategory, &ewc.CourseLevel, &ewc.DurationWeeks,
		); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		ewc.CompletedAt = nullTimePtr(completedAt)
		result = append(result, ewc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}
	return result, nil
}

// ListAll は全受講登録をenrolled_at昇順、id昇順で返す。
func (r *PostgresEnrollmentRepo) ListAll(ctx context.Context) ([]*model.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments ORDER BY enrolled_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list all enrollments: %w", err)
	}
	defer rows.Close()

	var result []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}
	return result, nil
}

// ListPendingCertificates は修了済み（認定待ち）の受講登録を返す。
// プロフィールが存在しない受講者の名前とメールは空文字になる。
func (r *PostgresEnrollmentRepo) ListPendingCertificates(ctx context.Context) ([]model.PendingCertificate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.user_id, e.course_id, e.status, e.progress, e.enrolled_at, e.completed_at,
		        COALESCE(p.full_name, ''), COALESCE(p.email, ''), c.title
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 LEFT JOIN profiles p ON p.user_id = e.user_id
		 WHERE e.status = $1
		 ORDER BY e.completed_at DESC NULLS LAST, e.id ASC`,
		model.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending certificates: %w", err)
	}
	defer rows.Close()

	var result []model.PendingCertificate
	for rows.Next() {
		var pc model.PendingCertificate
		var completedAt sql.NullTime
		if err := rows.Scan(
			&pc.ID, &pc.UserID, &pc.CourseID, &pc.Status, &pc.Progress, &pc.EnrolledAt, &completedAt,
			&pc.StudentName, &pc.StudentEmail, &pc.CourseTitle,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending certificate: %w", err)
		}
		pc.CompletedAt = nullTimePtr(completedAt)
		result = append(result, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending certificates: %w", err)
	}
	return result, nil
}

// TransitionStatus は現在のステータスがfromのいずれかである場合に限りtoへ更新する。
// completedAtがnilの場合は既存のcompleted_atを維持する。
func (r *PostgresEnrollmentRepo) TransitionStatus(ctx context.Context, id string, from []model.EnrollmentStatus, to model.EnrollmentStatus, completedAt *time.Time) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`UPDATE enrollments
		 SET status = $2, completed_at = COALESCE($3, completed_at)
		 WHERE id = $1 AND status = ANY($4)
		 RETURNING `+enrollmentColumns,
		id, to, timePtrValue(completedAt), pq.Array(statusStrings(from)),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition enrollment status: %w", err)
	}
	return e, nil
}

// UpdateProgress は受講中の受講登録の進捗を条件付きで更新する。
// AllowRegressionがfalseの場合はprogress <= 新しい値の行のみ更新する。
func (r *PostgresEnrollmentRepo) UpdateProgress(ctx context.Context, u ProgressUpdate) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`UPDATE enrollments
		 SET progress = $2, status = $3, completed_at = COALESCE($4, completed_at)
		 WHERE id = $1
		   AND status = ANY($5)
		   AND ($6 OR progress <= $2)
		 RETURNING `+enrollmentColumns,
		u.EnrollmentID, u.Progress, u.Status, timePtrValue(u.CompletedAt),
		pq.Array(statusStrings(model.InProgressStatuses)), u.AllowRegression,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update enrollment progress: %w", err)
	}
	return e, nil
}

// compile-time interface check
var _ EnrollmentRepository = (*PostgresEnrollmentRepo)(nil)
