package domain

// TypeStyle is the presentation for one activity type.
type TypeStyle struct {
	Label string `yaml:"label" json:"label"`
	Icon  string `yaml:"icon" json:"icon"`
	Color string `yaml:"color" json:"color"`
}

// DefaultTypeStyles returns the built-in styles keyed by activity type.
// TypeOther doubles as the fallback for unknown types.
func DefaultTypeStyles() map[string]TypeStyle {
	return map[string]TypeStyle{
		TypeRunning:        {Label: "Running", Icon: "🏃", Color: "#FF6B6B"},
		TypeCycling:        {Label: "Cycling", Icon: "🚴", Color: "#4ECDC4"},
		TypeWeightlifting:  {Label: "Weightlifting", Icon: "🏋️", Color: "#45B7D1"},
		TypeWalking:        {Label: "Walking", Icon: "🚶", Color: "#45B7D1"},
		TypeSwimming:       {Label: "Swimming", Icon: "🏊", Color: "#45B7D1"},
		TypeWeightTraining: {Label: "Weight Training", Icon: "🏋️", Color: "#45B7D1"},
		TypeYoga:           {Label: "Yoga", Icon: "🧘", Color: "#45B7D1"},
		TypeHike:           {Label: "Hike", Icon: "🥾", Color: "#45B7D1"},
		TypeCardio:         {Label: "Cardio", Icon: "❤️", Color: "#45B7D1"},
		TypeStretching:     {Label: "Stretching", Icon: "🤸", Color: "#45B7D1"},
		TypeOther:          {Label: "Other", Icon: "🏋️", Color: "#45B7D1"},
	}
}

// StyleFor looks up the style for activityType, falling back to TypeOther
// and then to a bare label.
func StyleFor(styles map[string]TypeStyle, activityType string) TypeStyle {
	if s, ok := styles[activityType]; ok {
		return s
	}
	if s, ok := styles[TypeOther]; ok {
		if activityType != "" {
			s.Label = activityType
		}
		return s
	}
	return TypeStyle{Label: activityType}
}
