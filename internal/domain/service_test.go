package domain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmitActivityValidatesBeforeNetwork(t *testing.T) {
	api := &stubAPI{}
	agg := NewAggregator(api, staticSession{Principal{Token: "t1", UserID: "u1"}})

	_, err := agg.SubmitActivity(context.Background(), Draft{Type: TypeRunning})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"duration", "caloriesBurned"}, verr.Fields)
	require.Zero(t, api.calls())
}

func TestSubmitActivityRequiresSession(t *testing.T) {
	api := &stubAPI{}
	agg := NewAggregator(api, staticSession{})

	_, err := agg.SubmitActivity(context.Background(), Draft{Type: TypeRunning, Duration: 10, CaloriesBurned: 50})

	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	require.ErrorIs(t, err, ErrNoSession)
	require.Zero(t, api.calls())
}

func TestSubmitAndRefresh(t *testing.T) {
	api := &stubAPI{list: []Activity{{ID: "1", Type: TypeRunning, Duration: 30, CaloriesBurned: 300}}}
	agg := NewAggregator(api, staticSession{Principal{Token: "t1", UserID: "u1"}})

	created, snap, err := agg.SubmitAndRefresh(context.Background(), Draft{Type: TypeCycling, Duration: 45, CaloriesBurned: 400})
	require.NoError(t, err)
	require.Equal(t, "new-1", created.ID)
	require.Equal(t, 2, snap.View.TotalActivities)
	require.Equal(t, 700, snap.View.TotalCalories)
	require.Equal(t, "t1", api.lastPrincipal.Token)
}

func TestRefreshKeepsPreviousViewOnFetchError(t *testing.T) {
	api := &stubAPI{list: []Activity{{ID: "1", Type: TypeRunning, Duration: 30, CaloriesBurned: 300}}}
	agg := NewAggregator(api, staticSession{Principal{Token: "t1"}}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	first, err := agg.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.View.TotalActivities)

	api.setErr(&FetchError{Op: "list activities", StatusCode: 500})
	second, err := agg.Refresh(context.Background())

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, first, second)
}

func TestRefreshDiscardsStaleResponse(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &stubAPI{list: []Activity{{ID: "new", Duration: 5, CaloriesBurned: 5}}}
	api.blockFirst = func() {
		close(entered)
		<-release
	}
	api.firstList = []Activity{{ID: "old"}}
	agg := NewAggregator(api, staticSession{Principal{Token: "t1"}})

	var wg sync.WaitGroup
	var slow Snapshot
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow, _ = agg.Refresh(context.Background())
	}()
	<-entered

	fast, err := agg.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "new", fast.Activities[0].ID)

	close(release)
	wg.Wait()

	require.Equal(t, "new", slow.Activities[0].ID)
	require.Equal(t, "new", agg.Last().Activities[0].ID)
}

func TestFetchActivityDetailPropagatesNotFound(t *testing.T) {
	api := &stubAPI{detailErr: &NotFoundError{ID: "missing"}}
	agg := NewAggregator(api, staticSession{Principal{Token: "t1"}})

	_, err := agg.FetchActivityDetail(context.Background(), "missing")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "missing", nf.ID)
}

func TestParseDraft(t *testing.T) {
	draft, err := ParseDraft("running", "30", " 250 ", "easy pace")
	require.NoError(t, err)
	require.Equal(t, Draft{Type: TypeRunning, Duration: 30, CaloriesBurned: 250, Notes: "easy pace"}, draft)

	_, err = ParseDraft("RUNNING", "thirty", "250", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"duration"}, verr.Fields)

	_, err = ParseDraft("", "", "", "")
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"type", "duration", "caloriesBurned"}, verr.Fields)
}

func TestActivityDetailAcceptsRecommendationFields(t *testing.T) {
	payload := `{"activityId":"a1","activityType":"RUNNING","recommendation":"Overall: good\n\nPace: steady","safety":["Stay hydrated"]}`

	var detail ActivityDetail
	require.NoError(t, json.Unmarshal([]byte(payload), &detail))

	require.Equal(t, "a1", detail.ID)
	require.Equal(t, TypeRunning, detail.Type)
	sections := detail.Sections()
	require.Len(t, sections, 2)
	require.Equal(t, []string{"Overall: good", "Pace: steady"}, sections[0].Lines)
	require.Equal(t, "Safety", sections[1].Title)
}

type staticSession struct {
	p Principal
}

func (s staticSession) Principal() (Principal, bool) {
	return s.p, s.p.Token != ""
}

type stubAPI struct {
	mu            sync.Mutex
	n             int
	list          []Activity
	firstList     []Activity
	blockFirst    func()
	err           error
	detailErr     error
	lastPrincipal Principal
}

func (s *stubAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *stubAPI) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubAPI) ListActivities(_ context.Context, p Principal) ([]Activity, error) {
	s.mu.Lock()
	s.n++
	first := s.n == 1
	block := s.blockFirst
	s.lastPrincipal = p
	err := s.err
	list := append([]Activity(nil), s.list...)
	firstList := s.firstList
	s.mu.Unlock()

	if first && block != nil {
		block()
		return firstList, nil
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *stubAPI) CreateActivity(_ context.Context, p Principal, draft Draft) (*Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	s.lastPrincipal = p
	if s.err != nil {
		return nil, s.err
	}
	created := Activity{
		ID:             "new-1",
		Type:           draft.Type,
		Duration:       draft.Duration,
		CaloriesBurned: draft.CaloriesBurned,
	}
	s.list = append(s.list, created)
	return &created, nil
}

func (s *stubAPI) GetActivityDetail(_ context.Context, p Principal, id string) (*ActivityDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	if errors.Is(s.err, ErrNoSession) {
		return nil, s.err
	}
	return &ActivityDetail{Activity: Activity{ID: id}}, nil
}
