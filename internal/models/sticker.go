package models

import "time"

// StickerLevel identifies one of the fixed reward tiers.
type StickerLevel string

const (
	StickerSeed         StickerLevel = "seed"
	StickerBloom        StickerLevel = "bloom"
	StickerShootingStar StickerLevel = "shooting_star"
	StickerRocket       StickerLevel = "rocket"
	StickerSatellite    StickerLevel = "satellite"
	StickerAurora       StickerLevel = "aurora"
	StickerToTheMoon    StickerLevel = "to_the_moon"
)

// StickerMeta describes a reward tier: display order, name, emoji and points.
type StickerMeta struct {
	Level  StickerLevel `json:"level"`
	Order  int          `json:"order"`
	Name   string       `json:"name"`
	Emoji  string       `json:"emoji"`
	Points int          `json:"points"`
}

// StickerLevels is the fixed reward table, keyed by level.
var StickerLevels = map[StickerLevel]StickerMeta{
	StickerSeed:         {Level: StickerSeed, Order: 1, Name: "씨앗", Emoji: "🌱", Points: 10},
	StickerBloom:        {Level: StickerBloom, Order: 2, Name: "꽃봉오리", Emoji: "🌸", Points: 20},
	StickerShootingStar: {Level: StickerShootingStar, Order: 3, Name: "별똥별", Emoji: "🌠", Points: 30},
	StickerRocket:       {Level: StickerRocket, Order: 4, Name: "로켓", Emoji: "🚀", Points: 50},
	StickerSatellite:    {Level: StickerSatellite, Order: 5, Name: "위성", Emoji: "🛰️", Points: 70},
	StickerAurora:       {Level: StickerAurora, Order: 6, Name: "오로라", Emoji: "🌌", Points: 85},
	StickerToTheMoon:    {Level: StickerToTheMoon, Order: 7, Name: "투더문", Emoji: "🌕", Points: 100},
}

// StickerLevelList returns all tiers sorted by display order.
func StickerLevelList() []StickerMeta {
	list := make([]StickerMeta, 0, len(StickerLevels))
	for order := 1; order <= len(StickerLevels); order++ {
		for _, meta := range StickerLevels {
			if meta.Order == order {
				list = append(list, meta)
				break
			}
		}
	}
	return list
}

// ValidStickerLevel reports whether the level exists in the reward table.
func ValidStickerLevel(level StickerLevel) bool {
	_, ok := StickerLevels[level]
	return ok
}

// CalcTotalPoints sums count×points across the reward table. Unknown levels
// contribute nothing.
func CalcTotalPoints(levelCounts map[StickerLevel]int) int {
	total := 0
	for level, count := range levelCounts {
		if meta, ok := StickerLevels[level]; ok && count > 0 {
			total += meta.Points * count
		}
	}
	return total
}

// Sticker is a teacher-issued gamification token.
type Sticker struct {
	ID        string       `db:"id" json:"id"`
	TeacherID string       `db:"teacher_id" json:"teacher_id"`
	StudentID string       `db:"student_id" json:"student_id"`
	Level     StickerLevel `db:"level" json:"level"`
	Comment   *string      `db:"comment" json:"comment,omitempty"`
	LessonID  *string      `db:"lesson_id" json:"lesson_id,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// StickerWithMeta decorates a sticker with its reward tier metadata.
type StickerWithMeta struct {
	Sticker
	Meta StickerMeta `json:"meta"`
}

// CreateStickerRequest holds the issuance payload.
type CreateStickerRequest struct {
	StudentID string       `json:"student_id" validate:"required,uuid4"`
	Level     StickerLevel `json:"level" validate:"required"`
	Comment   *string      `json:"comment" validate:"omitempty,max=500"`
	LessonID  *string      `json:"lesson_id" validate:"omitempty,uuid4"`
}

// UpdateStickerRequest holds partial updates to an issued sticker.
type UpdateStickerRequest struct {
	Level   *StickerLevel `json:"level"`
	Comment *string       `json:"comment" validate:"omitempty,max=500"`
}

// StickerFilter captures list criteria with limit/offset pagination.
type StickerFilter struct {
	TeacherID string
	StudentID string
	LessonID  string
	Limit     int
	Offset    int
}

// StickerLevelCount is one row of the per-level stats breakdown.
type StickerLevelCount struct {
	StickerMeta
	Count int `json:"count"`
}

// StickerStats aggregates a student's sticker history.
type StickerStats struct {
	TotalCount    int                 `json:"totalCount"`
	TotalPoints   int                 `json:"totalPoints"`
	LevelCounts   []StickerLevelCount `json:"levelCounts"`
	LatestSticker *StickerWithMeta    `json:"latestSticker"`
}
