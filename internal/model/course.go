package model

import "time"

// CourseLevel はコースの難易度を表す。
type CourseLevel string

const (
	// LevelBeginner は初級。
	LevelBeginner CourseLevel = "Beginner"
	// LevelIntermediate は中級。
	LevelIntermediate CourseLevel = "Intermediate"
	// LevelAdvanced は上級。
	LevelAdvanced CourseLevel = "Advanced"
)

// IsValid は定義済みの難易度かを返す。
func (l CourseLevel) IsValid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Course は開講コースを表す。カタログは外部で管理され、本サービスからは読み取り専用。
type Course struct {
	ID            string
	Title         string
	Description   string
	Category      string
	Level         CourseLevel
	Price         float64 // 0以上
	DurationWeeks int     // 1以上
	IsActive      bool
	CreatedAt     time.Time
}

// CourseFilter はコース一覧の絞り込み条件。空のフィールドは条件に含めない。
type CourseFilter struct {
	Category string
	Level    CourseLevel
	Search   string // タイトルの部分一致（大文字小文字を区別しない）
}
