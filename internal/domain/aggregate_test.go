package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeAggregateEmpty(t *testing.T) {
	view := ComputeAggregate(nil, nil)

	require.Zero(t, view.TotalActivities)
	require.Zero(t, view.TotalCalories)
	require.Zero(t, view.TotalDuration)
	require.Zero(t, view.AverageCaloriesPerActivity)
	require.Zero(t, view.AverageDurationPerActivity)
	require.Empty(t, view.Breakdown)
	require.Empty(t, view.Achievements)
}

func TestComputeAggregateTotalsAndBreakdown(t *testing.T) {
	activities := []Activity{
		{Type: TypeRunning, Duration: 30, CaloriesBurned: 300},
		{Type: TypeCycling, Duration: 45, CaloriesBurned: 400},
	}

	view := ComputeAggregate(activities, nil)

	require.Equal(t, 2, view.TotalActivities)
	require.Equal(t, 700, view.TotalCalories)
	require.Equal(t, 75, view.TotalDuration)
	require.Equal(t, 350, view.AverageCaloriesPerActivity)
	require.Equal(t, 38, view.AverageDurationPerActivity)
	require.Equal(t, map[string]TypeStats{
		TypeRunning: {Count: 1, Calories: 300, Duration: 30},
		TypeCycling: {Count: 1, Calories: 400, Duration: 45},
	}, view.Breakdown)

	require.Len(t, view.Achievements, 1)
	require.Equal(t, "first-step", view.Achievements[0].ID)
}

func TestComputeAggregateIsIdempotent(t *testing.T) {
	activities := []Activity{
		{Type: TypeYoga, Duration: 60, CaloriesBurned: 180},
		{Type: "", Duration: 20, CaloriesBurned: 90},
		{Type: TypeYoga, Duration: 15, CaloriesBurned: 40},
	}

	first := ComputeAggregate(activities, nil)
	second := ComputeAggregate(activities, nil)

	require.Equal(t, first, second)
	require.Equal(t, TypeStats{Count: 1, Calories: 90, Duration: 20}, first.Breakdown[TypeOther])
}

func TestComputeAggregateUnlocksEveryBadgeOnce(t *testing.T) {
	activities := make([]Activity, 10)
	for i := range activities {
		activities[i] = Activity{Type: TypeRunning, Duration: 30, CaloriesBurned: 100}
	}

	view := ComputeAggregate(activities, nil)

	ids := make([]string, 0, len(view.Achievements))
	for _, a := range view.Achievements {
		ids = append(ids, a.ID)
	}
	require.Equal(t, []string{"first-step", "getting-started", "committed", "calorie-crusher", "time-master"}, ids)
}

func TestComputeAggregateCustomRules(t *testing.T) {
	rules := []AchievementRule{
		{ID: "marathoner", Title: "Marathoner", Metric: MetricMinutes, Threshold: 200},
		{ID: "unknown", Title: "Never", Metric: Metric("steps"), Threshold: 0},
	}
	activities := []Activity{{Type: TypeRunning, Duration: 240, CaloriesBurned: 2000}}

	view := ComputeAggregate(activities, rules)

	require.Len(t, view.Achievements, 1)
	require.Equal(t, "marathoner", view.Achievements[0].ID)
}

func TestBuildDashboard(t *testing.T) {
	activities := []Activity{
		{ID: "a", Type: TypeRunning, Duration: 200, CaloriesBurned: 900},
		{ID: "b", Type: TypeCycling, Duration: 200, CaloriesBurned: 500},
		{ID: "c", Type: TypeCycling, Duration: 10, CaloriesBurned: 50},
	}
	view := ComputeAggregate(activities, nil)

	dash := BuildDashboard(view, activities, DefaultGoals(), 2)

	require.Equal(t, 3, dash.TotalActivities)
	require.Equal(t, 100, dash.MinutesGoal.Percent)
	require.Equal(t, 410, dash.MinutesGoal.Current)
	require.Equal(t, 73, dash.CaloriesGoal.Percent)
	require.Len(t, dash.Recent, 2)
	require.Equal(t, "a", dash.Recent[0].ID)
}
