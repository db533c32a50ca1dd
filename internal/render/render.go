// Package render prints activities, analytics and the session to a terminal.
package render

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/session"
)

// Renderer writes styled output. Colours are dropped automatically when w is
// not a terminal.
type Renderer struct {
	w      io.Writer
	lg     *lipgloss.Renderer
	styles map[string]domain.TypeStyle
	now    func() time.Time

	heading lipgloss.Style
	muted   lipgloss.Style
	errText lipgloss.Style
	badge   lipgloss.Style
}

// New constructs a Renderer. A nil styles map uses domain.DefaultTypeStyles.
func New(w io.Writer, styles map[string]domain.TypeStyle) *Renderer {
	if styles == nil {
		styles = domain.DefaultTypeStyles()
	}
	lg := lipgloss.NewRenderer(w)
	return &Renderer{
		w:       w,
		lg:      lg,
		styles:  styles,
		now:     time.Now,
		heading: lg.NewStyle().Bold(true).Underline(true),
		muted:   lg.NewStyle().Faint(true),
		errText: lg.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		badge:   lg.NewStyle().Foreground(lipgloss.Color("#F7B801")),
	}
}

func (r *Renderer) typeLabel(activityType string) string {
	style := domain.StyleFor(r.styles, activityType)
	label := style.Label
	if label == "" {
		label = domain.TypeOther
	}
	text := label
	if style.Icon != "" {
		text = style.Icon + " " + label
	}
	if style.Color == "" {
		return text
	}
	return r.lg.NewStyle().Foreground(lipgloss.Color(style.Color)).Bold(true).Render(text)
}

// when formats a start time relative to now; activities without one are
// shown as today.
func (r *Renderer) when(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "today"
	}
	return humanize.RelTime(*t, r.now(), "ago", "from now")
}

// Activities prints one line per activity in server order.
func (r *Renderer) Activities(activities []domain.Activity) {
	if len(activities) == 0 {
		fmt.Fprintln(r.w, r.muted.Render("No activities yet. Add one with `fitness add`."))
		return
	}
	for _, a := range activities {
		fmt.Fprintf(r.w, "%s  %s  %s min  %s kcal  %s\n",
			r.muted.Render(a.ID),
			r.typeLabel(a.Type),
			humanize.Comma(int64(a.Duration)),
			humanize.Comma(int64(a.CaloriesBurned)),
			r.muted.Render(r.when(a.StartTime)),
		)
	}
}

// Detail prints an activity with its recommendation sections.
func (r *Renderer) Detail(d *domain.ActivityDetail) {
	fmt.Fprintln(r.w, r.heading.Render("Activity "+d.ID))
	fmt.Fprintf(r.w, "Type:      %s\n", r.typeLabel(d.Type))
	fmt.Fprintf(r.w, "Duration:  %s min\n", humanize.Comma(int64(d.Duration)))
	fmt.Fprintf(r.w, "Calories:  %s kcal\n", humanize.Comma(int64(d.CaloriesBurned)))
	fmt.Fprintf(r.w, "Started:   %s\n", r.when(d.StartTime))
	if d.Notes != "" {
		fmt.Fprintf(r.w, "Notes:     %s\n", d.Notes)
	}

	sections := d.Sections()
	if len(sections) == 0 {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, r.muted.Render("No recommendation available yet."))
		return
	}
	for _, s := range sections {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, r.heading.Render(s.Title))
		for _, line := range s.Lines {
			if s.Title == "Analysis" {
				fmt.Fprintln(r.w, line)
				continue
			}
			fmt.Fprintln(r.w, "  • "+line)
		}
	}
}

// Analytics prints totals, the per-type breakdown and unlocked achievements.
func (r *Renderer) Analytics(view domain.AggregateView) {
	fmt.Fprintln(r.w, r.heading.Render("Totals"))
	fmt.Fprintf(r.w, "Activities:        %s\n", humanize.Comma(int64(view.TotalActivities)))
	fmt.Fprintf(r.w, "Calories:          %s kcal\n", humanize.Comma(int64(view.TotalCalories)))
	fmt.Fprintf(r.w, "Duration:          %s min\n", humanize.Comma(int64(view.TotalDuration)))
	fmt.Fprintf(r.w, "Avg calories:      %s kcal\n", humanize.Comma(int64(view.AverageCaloriesPerActivity)))
	fmt.Fprintf(r.w, "Avg duration:      %s min\n", humanize.Comma(int64(view.AverageDurationPerActivity)))

	if len(view.Breakdown) > 0 {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, r.heading.Render("By type"))
		types := make([]string, 0, len(view.Breakdown))
		for t := range view.Breakdown {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			stats := view.Breakdown[t]
			fmt.Fprintf(r.w, "%s  %s × %s min  %s kcal\n",
				r.typeLabel(t),
				humanize.Comma(int64(stats.Count)),
				humanize.Comma(int64(stats.Duration)),
				humanize.Comma(int64(stats.Calories)),
			)
		}
	}

	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.heading.Render("Achievements"))
	if len(view.Achievements) == 0 {
		fmt.Fprintln(r.w, r.muted.Render("Keep going to unlock your first badge."))
		return
	}
	for _, a := range view.Achievements {
		fmt.Fprintf(r.w, "%s %s  %s\n", a.Icon, r.badge.Render(a.Title), r.muted.Render(a.Description))
	}
}

// Dashboard prints the summary, goal progress and recent activities.
func (r *Renderer) Dashboard(d domain.DashboardView) {
	fmt.Fprintln(r.w, r.heading.Render("This week"))
	fmt.Fprintf(r.w, "Minutes   %s\n", r.progress(d.MinutesGoal))
	fmt.Fprintf(r.w, "Calories  %s\n", r.progress(d.CaloriesGoal))
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.heading.Render("Recent activities"))
	r.Activities(d.Recent)
}

func (r *Renderer) progress(p domain.GoalProgress) string {
	const width = 20
	filled := p.Percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %3d%%  %s / %s", bar, p.Percent, humanize.Comma(int64(p.Current)), humanize.Comma(int64(p.Goal)))
}

// Session prints who is logged in.
func (r *Renderer) Session(s session.Session) {
	if !s.Authenticated() {
		fmt.Fprintln(r.w, "Not logged in. Run `fitness login`.")
		return
	}
	name := s.Claims.DisplayName()
	if name == "" {
		name = s.UserID
	}
	fmt.Fprintf(r.w, "Logged in as %s\n", r.heading.Render(name))
	fmt.Fprintf(r.w, "User ID: %s\n", s.UserID)
	if s.Claims != nil && s.Claims.Email != "" {
		fmt.Fprintf(r.w, "Email:   %s\n", s.Claims.Email)
	}
	if exp := s.Claims.ExpiresAt(); !exp.IsZero() {
		state := "expires"
		if exp.Before(r.now()) {
			state = "expired"
		}
		fmt.Fprintf(r.w, "Token %s %s\n", state, humanize.RelTime(exp, r.now(), "ago", "from now"))
	}
}

// Error prints a one-line error, adding a hint when the API rejected the token.
func (r *Renderer) Error(err error) {
	msg := err.Error()
	var ferr *domain.FetchError
	if errors.As(err, &ferr) && ferr.Unauthorized() {
		msg += " (session expired? run `fitness login` again)"
	}
	if errors.Is(err, domain.ErrNoSession) {
		msg += " (run `fitness login` first)"
	}
	fmt.Fprintln(r.w, r.errText.Render("error: ")+msg)
}
