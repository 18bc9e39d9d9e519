package points

import "time"

type Threshold struct {
	Level     int    `json:"level"`
	MinPoints int    `json:"min_points"`
	Title     string `json:"title"`
}

// Thresholds must keep strictly increasing MinPoints with level 1 at 0.
var Thresholds = []Threshold{
	{Level: 1, MinPoints: 0, Title: "Newcomer"},
	{Level: 2, MinPoints: 100, Title: "Health Starter"},
	{Level: 3, MinPoints: 250, Title: "Health Enthusiast"},
	{Level: 4, MinPoints: 500, Title: "Wellness Warrior"},
	{Level: 5, MinPoints: 1000, Title: "Vitality Champion"},
	{Level: 6, MinPoints: 2000, Title: "Wellness Master"},
	{Level: 7, MinPoints: 5000, Title: "Health Legend"},
}

// Account is the per-user points row.
type Account struct {
	UserID       string    `json:"user_id" db:"user_id"`
	TotalPoints  int       `json:"total_points" db:"total_points"`
	CurrentLevel int       `json:"current_level" db:"current_level"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type LevelInfo struct {
	Level       int        `json:"level"`
	Title       string     `json:"title"`
	MinPoints   int        `json:"min_points"`
	NextLevel   *Threshold `json:"next_level,omitempty"`
	ProgressPct float64    `json:"progress_pct"`
}

// Summary is what callers see for a user's level.
type Summary struct {
	Level       int        `json:"level"`
	Title       string     `json:"title"`
	TotalPoints int        `json:"total_points"`
	NextLevel   *Threshold `json:"next_level,omitempty"`
	ProgressPct float64    `json:"progress_pct"`
}

func LevelFor(total int) LevelInfo {
	if total < 0 {
		total = 0
	}

	idx := 0
	for i := len(Thresholds) - 1; i >= 0; i-- {
		if Thresholds[i].MinPoints <= total {
			idx = i
			break
		}
	}

	cur := Thresholds[idx]
	info := LevelInfo{
		Level:       cur.Level,
		Title:       cur.Title,
		MinPoints:   cur.MinPoints,
		ProgressPct: 100,
	}
	if idx+1 < len(Thresholds) {
		next := Thresholds[idx+1]
		info.NextLevel = &next
		pct := 100 * float64(total-cur.MinPoints) / float64(next.MinPoints-cur.MinPoints)
		info.ProgressPct = min(max(pct, 0), 100)
	}
	return info
}

func SummaryFor(total int) Summary {
	info := LevelFor(total)
	return Summary{
		Level:       info.Level,
		Title:       info.Title,
		TotalPoints: max(total, 0),
		NextLevel:   info.NextLevel,
		ProgressPct: info.ProgressPct,
	}
}
