// Package web exposes the local dashboard: login, analytics and activity
// views backed by a single Aggregator.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"example.com/fitness/internal/auth"
	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/session"
)

// Sessions is the part of the session Manager the dashboard drives.
type Sessions interface {
	BeginLogin(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, params url.Values) (session.Session, error)
	Logout(ctx context.Context) error
	Current() session.Session
	State() session.State
}

// Handler coordinates HTTP requests with the session and the aggregator.
type Handler struct {
	sessions   Sessions
	aggregator *domain.Aggregator
	goals      domain.Goals
	recent     int
	logger     *slog.Logger
}

// Option configures optional Handler behaviour.
type Option func(*Handler)

// WithGoals overrides the dashboard goals.
func WithGoals(goals domain.Goals) Option {
	return func(h *Handler) { h.goals = goals }
}

// WithRecent sets how many activities the dashboard lists.
func WithRecent(n int) Option {
	return func(h *Handler) { h.recent = n }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler builds a Handler.
func NewHandler(sessions Sessions, aggregator *domain.Aggregator, opts ...Option) *Handler {
	h := &Handler{
		sessions:   sessions,
		aggregator: aggregator,
		goals:      domain.DefaultGoals(),
		recent:     5,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PublicPaths are reachable without a session.
var PublicPaths = []string{"/healthz", "/login", "/callback", "/logout", "/session", "/metrics"}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthz)
	mux.HandleFunc("/login", h.login)
	mux.HandleFunc("/callback", h.callback)
	mux.HandleFunc("/logout", h.logout)
	mux.HandleFunc("/session", h.session)
	mux.HandleFunc("/dashboard", h.dashboard)
	mux.HandleFunc("/analytics", h.analytics)
	mux.HandleFunc("/activities", h.activities)
	mux.HandleFunc("/activities/", h.activityByID)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	authURL, err := h.sessions.BeginLogin(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLoginInProgress) {
			writeError(w, http.StatusConflict, "login_in_progress", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "login_failed", err.Error())
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, err := h.sessions.HandleCallback(r.Context(), r.URL.Query()); err != nil {
		writeError(w, http.StatusUnauthorized, "login_failed", err.Error())
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Warn("logout could not clear storage", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionView is the identity shown by GET /session.
type SessionView struct {
	State         session.State `json:"state"`
	Authenticated bool          `json:"authenticated"`
	UserID        string        `json:"userId,omitempty"`
	DisplayName   string        `json:"displayName,omitempty"`
	Email         string        `json:"email,omitempty"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	sess := h.sessions.Current()
	view := SessionView{
		State:         h.sessions.State(),
		Authenticated: sess.Authenticated(),
		UserID:        sess.UserID,
		DisplayName:   sess.Claims.DisplayName(),
	}
	if sess.Claims != nil {
		view.Email = sess.Claims.Email
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	snap, err := h.aggregator.Refresh(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	recent := h.recent
	if raw := r.URL.Query().Get("recent"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			recent = parsed
		}
	}
	writeJSON(w, http.StatusOK, domain.BuildDashboard(snap.View, snap.Activities, h.goals, recent))
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	snap, err := h.aggregator.Refresh(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.View)
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	snap, err := h.aggregator.Refresh(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	items := snap.Activities
	if items == nil {
		items = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items []domain.Activity `json:"items"`
}

// CreateActivityRequest is the payload for POST /activities. Numbers are
// accepted as JSON numbers or strings, matching form input.
type CreateActivityRequest struct {
	Type           string      `json:"type"`
	Duration       json.Number `json:"duration"`
	CaloriesBurned json.Number `json:"caloriesBurned"`
	Notes          string      `json:"notes"`
}

// CreateActivityResponse carries the created activity and the refreshed view.
type CreateActivityResponse struct {
	Activity  *domain.Activity     `json:"activity"`
	Analytics domain.AggregateView `json:"analytics"`
	Warning   string               `json:"warning,omitempty"`
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	draft, err := domain.ParseDraft(req.Type, req.Duration.String(), req.CaloriesBurned.String(), req.Notes)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	created, snap, err := h.aggregator.SubmitAndRefresh(r.Context(), draft)
	if err != nil && created == nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp := CreateActivityResponse{Activity: created, Analytics: snap.View}
	if err != nil {
		resp.Warning = err.Error()
	}
	h.logger.Info("activity created", "user_id", requestUser(r), "activity_id", created.ID, "type", created.Type)
	writeJSON(w, http.StatusCreated, resp)
}

func decodeCreateRequest(r *http.Request) (CreateActivityRequest, error) {
	var req CreateActivityRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Type = r.PostForm.Get("type")
		req.Duration = json.Number(r.PostForm.Get("duration"))
		req.CaloriesBurned = json.Number(r.PostForm.Get("caloriesBurned"))
		req.Notes = r.PostForm.Get("notes")
		return req, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
}

// ActivityDetailResponse is the detail view with the recommendation split
// into titled sections.
type ActivityDetailResponse struct {
	*domain.ActivityDetail
	Sections []domain.RecommendationSection `json:"sections"`
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/activities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	detail, err := h.aggregator.FetchActivityDetail(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityDetailResponse{ActivityDetail: detail, Sections: detail.Sections()})
}

// requestUser returns the user the auth middleware admitted the request for.
func requestUser(r *http.Request) string {
	if p, ok := auth.FromContext(r.Context()); ok {
		return p.UserID
	}
	return ""
}

// writeDomainError maps the client's error kinds to dashboard responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *domain.ValidationError
		nerr *domain.NotFoundError
		ferr *domain.FetchError
		aerr *domain.AuthError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &nerr):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &aerr):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.As(err, &ferr) && ferr.Unauthorized():
		writeError(w, http.StatusUnauthorized, "session_expired", err.Error()+"; visit /login")
	case errors.As(err, &ferr):
		h.logger.Warn("activity api call failed", "user_id", requestUser(r), "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
