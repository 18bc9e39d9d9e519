package achievement

import (
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaCount  CriteriaType = "count"
	CriteriaSum    CriteriaType = "sum"
	CriteriaStreak CriteriaType = "streak"
)

func (c CriteriaType) Valid() bool {
	switch c {
	case CriteriaCount, CriteriaSum, CriteriaStreak:
		return true
	}
	return false
}

type Category string

const (
	CategoryStreaks     Category = "streaks"
	CategoryMilestones  Category = "milestones"
	CategoryVitals      Category = "vitals"
	CategoryExercise    Category = "exercise"
	CategoryNutrition   Category = "nutrition"
	CategoryMedications Category = "medications"
	CategoryGoals       Category = "goals"
	CategorySymptoms    Category = "symptoms"
	CategoryEngagement  Category = "engagement"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryStreaks, CategoryMilestones, CategoryVitals, CategoryExercise,
		CategoryNutrition, CategoryMedications, CategoryGoals, CategorySymptoms,
		CategoryEngagement:
		return true
	}
	return false
}

type Definition struct {
	ID             string       `json:"id" yaml:"id"`
	Name           string       `json:"name" yaml:"name"`
	Description    string       `json:"description" yaml:"description"`
	Category       Category     `json:"category" yaml:"category"`
	Icon           string       `json:"icon" yaml:"icon"`
	Color          string       `json:"color" yaml:"color"`
	CriteriaType   CriteriaType `json:"criteria_type" yaml:"criteria_type"`
	CriteriaField  string       `json:"criteria_field" yaml:"criteria_field"`
	CriteriaTarget float64      `json:"criteria_target" yaml:"criteria_target"`
	Points         int          `json:"points" yaml:"points"`
	SortOrder      int          `json:"sort_order" yaml:"sort_order"`
}

type Unlock struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// View is a catalog entry annotated with one user's status.
type View struct {
	Definition
	IsUnlocked   bool       `json:"is_unlocked"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	CurrentValue float64    `json:"current_value"`
	ProgressPct  float64    `json:"progress_pct"`
}

type NewlyUnlocked struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
	Points      int      `json:"points"`
}

func (d Definition) Newly() NewlyUnlocked {
	return NewlyUnlocked{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Icon:        d.Icon,
		Color:       d.Color,
		Points:      d.Points,
	}
}
