package domain

import "math"

// Metric names an aggregate total an achievement rule can test.
type Metric string

const (
	MetricActivities Metric = "activities"
	MetricCalories   Metric = "calories"
	MetricMinutes    Metric = "minutes"
)

// AchievementRule unlocks an achievement once a metric reaches Threshold.
type AchievementRule struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	Metric      Metric `yaml:"metric" json:"metric"`
	Threshold   int    `yaml:"threshold" json:"threshold"`
}

// Achievement is an unlocked badge.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

// DefaultAchievementRules returns the built-in badges in priority order.
func DefaultAchievementRules() []AchievementRule {
	return []AchievementRule{
		{ID: "first-step", Title: "First Step", Description: "Completed your first activity!", Icon: "🎯", Metric: MetricActivities, Threshold: 1},
		{ID: "getting-started", Title: "Getting Started", Description: "Completed 5 activities", Icon: "🚀", Metric: MetricActivities, Threshold: 5},
		{ID: "committed", Title: "Committed", Description: "Completed 10 activities", Icon: "💪", Metric: MetricActivities, Threshold: 10},
		{ID: "calorie-crusher", Title: "Calorie Crusher", Description: "Burned 1000+ calories", Icon: "🔥", Metric: MetricCalories, Threshold: 1000},
		{ID: "time-master", Title: "Time Master", Description: "300+ minutes of activity", Icon: "⏰", Metric: MetricMinutes, Threshold: 300},
	}
}

// TypeStats is the per-type slice of an AggregateView.
type TypeStats struct {
	Count    int `json:"count"`
	Calories int `json:"calories"`
	Duration int `json:"duration"`
}

// AggregateView is derived from an activity collection and holds no other state.
type AggregateView struct {
	TotalActivities            int                  `json:"totalActivities"`
	TotalCalories              int                  `json:"totalCalories"`
	TotalDuration              int                  `json:"totalDuration"`
	AverageCaloriesPerActivity int                  `json:"averageCaloriesPerActivity"`
	AverageDurationPerActivity int                  `json:"averageDurationPerActivity"`
	Breakdown                  map[string]TypeStats `json:"activityBreakdown"`
	Achievements               []Achievement        `json:"achievements"`
}

// ComputeAggregate derives totals, averages, the per-type breakdown and the
// unlocked achievements. A nil rules slice selects DefaultAchievementRules.
// It performs no I/O and returns equal views for equal inputs.
func ComputeAggregate(activities []Activity, rules []AchievementRule) AggregateView {
	if rules == nil {
		rules = DefaultAchievementRules()
	}

	view := AggregateView{
		Breakdown:    make(map[string]TypeStats),
		Achievements: []Achievement{},
	}
	for _, a := range activities {
		view.TotalActivities++
		view.TotalCalories += a.CaloriesBurned
		view.TotalDuration += a.Duration

		key := a.Type
		if key == "" {
			key = TypeOther
		}
		stats := view.Breakdown[key]
		stats.Count++
		stats.Calories += a.CaloriesBurned
		stats.Duration += a.Duration
		view.Breakdown[key] = stats
	}

	view.AverageCaloriesPerActivity = roundedMean(view.TotalCalories, view.TotalActivities)
	view.AverageDurationPerActivity = roundedMean(view.TotalDuration, view.TotalActivities)

	for _, rule := range rules {
		if metricValue(view, rule.Metric) >= rule.Threshold {
			view.Achievements = append(view.Achievements, Achievement{
				ID:          rule.ID,
				Title:       rule.Title,
				Description: rule.Description,
				Icon:        rule.Icon,
			})
		}
	}
	return view
}

func metricValue(view AggregateView, metric Metric) int {
	switch metric {
	case MetricActivities:
		return view.TotalActivities
	case MetricCalories:
		return view.TotalCalories
	case MetricMinutes:
		return view.TotalDuration
	default:
		return math.MinInt
	}
}

// roundedMean rounds half away from zero; zero when count is zero.
func roundedMean(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}

// Goals are the dashboard targets progress is measured against.
type Goals struct {
	WeeklyMinutes int `yaml:"weekly_minutes" json:"weeklyMinutes"`
	Calories      int `yaml:"calories" json:"calories"`
}

// DefaultGoals mirrors the dashboard's built-in targets.
func DefaultGoals() Goals {
	return Goals{WeeklyMinutes: 300, Calories: 2000}
}

// GoalProgress reports percentage completion, capped at 100.
type GoalProgress struct {
	Goal    int `json:"goal"`
	Current int `json:"current"`
	Percent int `json:"percent"`
}

// Progress measures current against goal.
func Progress(current, goal int) GoalProgress {
	p := GoalProgress{Goal: goal, Current: current}
	if goal > 0 {
		p.Percent = int(math.Min(100, math.Round(float64(current)*100/float64(goal))))
	}
	return p
}

// DashboardView is the summary shown on the landing page.
type DashboardView struct {
	TotalActivities int          `json:"totalActivities"`
	TotalCalories   int          `json:"totalCalories"`
	TotalDuration   int          `json:"totalDuration"`
	MinutesGoal     GoalProgress `json:"minutesGoal"`
	CaloriesGoal    GoalProgress `json:"caloriesGoal"`
	Recent          []Activity   `json:"recent"`
}

// BuildDashboard summarises a view and the first recent activities in server order.
func BuildDashboard(view AggregateView, activities []Activity, goals Goals, recent int) DashboardView {
	if recent < 0 || recent > len(activities) {
		recent = len(activities)
	}
	out := DashboardView{
		TotalActivities: view.TotalActivities,
		TotalCalories:   view.TotalCalories,
		TotalDuration:   view.TotalDuration,
		MinutesGoal:     Progress(view.TotalDuration, goals.WeeklyMinutes),
		CaloriesGoal:    Progress(view.TotalCalories, goals.Calories),
		Recent:          make([]Activity, recent),
	}
	copy(out.Recent, activities[:recent])
	return out
}
