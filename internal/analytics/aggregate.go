// Package analytics は管理画面向けの集計ビューを提供する。
// 集計はスナップショットに対する純粋関数で、結果は永続化しない。
package analytics

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// 既定の上位件数
const (
	DefaultTopN    = 5
	DefaultRecentN = 5
)

// Snapshot は集計の入力となる各テーブルの読み取り結果。
// Enrollmentsはenrolled_at昇順、id昇順で並んでいること。
type Snapshot struct {
	Profiles         []*model.Profile
	Courses          []*model.Course
	Enrollments      []*model.Enrollment
	TotalSubmissions int
}

// CourseCount はコースごとの受講登録数。
type CourseCount struct {
	CourseID string
	Title    string
	Count    int
}

// Overview は管理ダッシュボードの集計結果。
type Overview struct {
	TotalUsers           int
	NewUsers             int
	UserGrowthPercent    int
	TotalEnrollments     int
	CompletedOrCertified int
	PendingCertificates  int
	ActiveCourses        int
	TotalCourses         int
	TotalSubmissions     int
	TopCourses           []CourseCount
	Recent               []*model.Enrollment
	RecentUsers          []*model.Profile
}

// GrowthPercent は前期間比の増加率（%）を四捨五入して返す。
// 前期間が0の場合は0を返す。
func GrowthPercent(current, prior int) int {
	if prior == 0 {
		return 0
	}
	return int(math.Round(float64(current-prior) / float64(prior) * 100))
}

// TopCourses は受講登録数の多い順に最大n件のコースを返す。
// 同数の場合は受講登録列に最初に現れた順を保つ。
func TopCourses(enrollments []*model.Enrollment, courses []*model.Course, n int) []CourseCount {
	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}

	index := make(map[string]int)
	var counts []CourseCount
	for _, e := range enrollments {
		i, ok := index[e.CourseID]
		if !ok {
			title, found := titles[e.CourseID]
			if !found {
				title = e.CourseID
			}
			i = len(counts)
			index[e.CourseID] = i
			counts = append(counts, CourseCount{CourseID: e.CourseID, Title: title})
		}
		counts[i].Count++
	}

	slices.SortStableFunc(counts, func(a, b CourseCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}
	if counts == nil {
		counts = []CourseCount{}
	}
	return counts
}

// RecentEnrollments はenrolled_atの新しい順に最大n件を返す。入力は変更しない。
func RecentEnrollments(enrollments []*model.Enrollment, n int) []*model.Enrollment {
	sorted := slices.Clone(enrollments)
	slices.SortStableFunc(sorted, func(a, b *model.Enrollment) int {
		return b.EnrolledAt.Compare(a.EnrolledAt)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []*model.Enrollment{}
	}
	return sorted
}

// recentProfiles はcreated_atの新しい順に最大n件のプロフィールを返す。
func recentProfiles(profiles []*model.Profile, n int) []*model.Profile {
	sorted := slices.Clone(profiles)
	slices.SortStableFunc(sorted, func(a, b *model.Profile) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []*model.Profile{}
	}
	return sorted
}

// Summarize はスナップショットから管理ダッシュボードの集計値を計算する。
// 新規ユーザー数は直近window内の作成数、増加率はその直前のwindowとの比較。
func Summarize(s Snapshot, now time.Time, window time.Duration) Overview {
	o := Overview{
		TotalUsers:       len(s.Profiles),
		TotalEnrollments: len(s.Enrollments),
		TotalCourses:     len(s.Courses),
		TotalSubmissions: s.TotalSubmissions,
	}

	currentStart := now.Add(-window)
	priorStart := currentStart.Add(-window)
	prior := 0
	for _, p := range s.Profiles {
		switch {
		case !p.CreatedAt.Before(currentStart) && !p.CreatedAt.After(now):
			o.NewUsers++
		case !p.CreatedAt.Before(priorStart) && p.CreatedAt.Before(currentStart):
			prior++
		}
	}
	o.UserGrowthPercent = GrowthPercent(o.NewUsers, prior)

	for _, e := range s.Enrollments {
		switch e.Status {
		case model.StatusCompleted:
			o.CompletedOrCertified++
			o.PendingCertificates++
		case model.StatusCertified:
			o.CompletedOrCertified++
		}
	}
	for _, c := range s.Courses {
		if c.IsActive {
			o.ActiveCourses++
		}
	}

	o.TopCourses = TopCourses(s.Enrollments, s.Courses, DefaultTopN)
	o.Recent = RecentEnrollments(s.Enrollments, DefaultRecentN)
	o.RecentUsers = recentProfiles(s.Profiles, DefaultRecentN)
	return o
}
