package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Known activity labels. The set is open-ended; the backend accepts any label.
const (
	TypeRunning        = "RUNNING"
	TypeCycling        = "CYCLING"
	TypeWeightlifting  = "WEIGHTLIFTING"
	TypeWalking        = "WALKING"
	TypeSwimming       = "SWIMMING"
	TypeWeightTraining = "WEIGHT_TRAINING"
	TypeYoga           = "YOGA"
	TypeHike           = "HIKE"
	TypeCardio         = "CARDIO"
	TypeStretching     = "STRETCHING"
	TypeOther          = "OTHER"
)

// Activity is a single logged workout as delivered by the activity API.
type Activity struct {
	ID                string                 `json:"id"`
	UserID            string                 `json:"userId,omitempty"`
	Type              string                 `json:"type"`
	Duration          int                    `json:"duration"`
	CaloriesBurned    int                    `json:"caloriesBurned"`
	Notes             string                 `json:"notes,omitempty"`
	StartTime         *time.Time             `json:"startTime,omitempty"`
	AdditionalMetrics map[string]interface{} `json:"additionalMetrics,omitempty"`
	CreatedAt         *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time             `json:"updatedAt,omitempty"`
}

// Draft is an activity that has not been assigned an ID yet.
type Draft struct {
	Type           string     `json:"type"`
	Duration       int        `json:"duration"`
	CaloriesBurned int        `json:"caloriesBurned"`
	Notes          string     `json:"notes,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
}

// Validate checks that the fields required for submission are present.
// Upper bounds are not enforced.
func (d Draft) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Type) == "" {
		missing = append(missing, "type")
	}
	if d.Duration <= 0 {
		missing = append(missing, "duration")
	}
	if d.CaloriesBurned <= 0 {
		missing = append(missing, "caloriesBurned")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "required"}
	}
	return nil
}

// ParseDraft builds a Draft from raw form or command-line values.
func ParseDraft(activityType, duration, calories, notes string) (Draft, error) {
	draft := Draft{
		Type:  strings.ToUpper(strings.TrimSpace(activityType)),
		Notes: strings.TrimSpace(notes),
	}

	var invalid []string
	if v, ok := parsePositive(duration); ok {
		draft.Duration = v
	} else if strings.TrimSpace(duration) != "" {
		invalid = append(invalid, "duration")
	}
	if v, ok := parsePositive(calories); ok {
		draft.CaloriesBurned = v
	} else if strings.TrimSpace(calories) != "" {
		invalid = append(invalid, "caloriesBurned")
	}
	if len(invalid) > 0 {
		return Draft{}, &ValidationError{Fields: invalid, Reason: "must be a positive whole number"}
	}
	if err := draft.Validate(); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

func parsePositive(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ActivityDetail is an activity together with its generated recommendation.
type ActivityDetail struct {
	Activity
	Recommendation string   `json:"recommendation"`
	Improvements   []string `json:"improvements,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
	Safety         []string `json:"safety,omitempty"`
}

// UnmarshalJSON accepts the recommendation service's field names
// (activityId, activityType) alongside the activity service's.
func (d *ActivityDetail) UnmarshalJSON(data []byte) error {
	type plain ActivityDetail
	var aux struct {
		plain
		ActivityID   string `json:"activityId"`
		ActivityType string `json:"activityType"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = ActivityDetail(aux.plain)
	if d.ID == "" {
		d.ID = aux.ActivityID
	}
	if d.Type == "" {
		d.Type = aux.ActivityType
	}
	return nil
}
