package adminagg

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/trial-gate/internal/changefeed"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/storage/repository"
)

// memRepo хранилище в памяти; изменения видны при следующей перезагрузке.
type memRepo struct {
	mu            sync.Mutex
	registrations []models.Registration
	trials        []models.TrialWithProfile
	comments      []models.LessonComment
	trialsErr     error
	calls         map[string]int
}

func (m *memRepo) count(name string) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *memRepo) ListRegistrations(context.Context) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("registrations")
	return append([]models.Registration(nil), m.registrations...), nil
}

func (m *memRepo) ListTrialsWithProfiles(context.Context) ([]models.TrialWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("trials")
	if m.trialsErr != nil {
		return nil, m.trialsErr
	}
	return append([]models.TrialWithProfile(nil), m.trials...), nil
}

func (m *memRepo) ListAllComments(context.Context) ([]models.LessonComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("comments")
	return append([]models.LessonComment(nil), m.comments...), nil
}

func (m *memRepo) reloads(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *memRepo) addTrial(tr models.TrialWithProfile) {
	m.mu.Lock()
	m.trials = append(m.trials, tr)
	m.mu.Unlock()
}

type ProfilesMock struct {
	mock.Mock
}

func (p *ProfilesMock) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := p.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

var now = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func trialRow(id, userID string, created, ends time.Time) models.TrialWithProfile {
	return models.TrialWithProfile{
		Trial:    models.Trial{ID: id, UserID: userID, StartedAt: created, EndsAt: ends, CreatedAt: created},
		FullName: "Student " + id,
	}
}

func newAggregator(repo Repository, profiles ProfileLookup, hub *changefeed.Hub, interval time.Duration) *Aggregator {
	return New(Options{
		Repo:       repo,
		Profiles:   profiles,
		Subscriber: hub,
		Now:        func() time.Time { return now },
		Location:   time.UTC,
		Interval:   interval,
		Log:        sl.Discard(),
	})
}

func TestAggregator_SnapshotMetricsAndOrder(t *testing.T) {
	repo := &memRepo{
		registrations: []models.Registration{
			{ID: "r1", Email: "a@example.com", CreatedAt: now.Add(-48 * time.Hour)},
			{ID: "r2", Email: "b@example.com", CreatedAt: now.Add(-time.Hour)},
			{ID: "r3", Email: "c@example.com", CreatedAt: time.Date(2025, 3, 10, 0, 0, 1, 0, time.UTC)},
		},
		trials: []models.TrialWithProfile{
			trialRow("t1", "u1", now.Add(-30*24*time.Hour), now.Add(-10*24*time.Hour)),
			trialRow("t2", "u2", now.Add(-time.Hour), now.Add(19*24*time.Hour)),
			trialRow("t3", "u3", now.Add(-20*24*time.Hour), now),
		},
		comments: []models.LessonComment{
			{ID: "c1", UserID: "u1", LessonID: 1, Comment: "first", CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "c2", UserID: "ghost", LessonID: 1, Comment: "second", CreatedAt: now.Add(-time.Hour)},
			{ID: "c3", UserID: "u1", LessonID: 2, Comment: "third", CreatedAt: now.Add(-time.Minute)},
		},
	}
	profiles := new(ProfilesMock)
	profiles.On("GetProfile", mock.Anything, "u1").Return(&models.Profile{UserID: "u1", FullName: "Ann"}, nil).Once()
	profiles.On("GetProfile", mock.Anything, "ghost").Return(nil, repository.ErrNotFound).Once()

	agg := newAggregator(repo, profiles, changefeed.NewHub(sl.Discard(), 0), time.Minute)
	assert.True(t, agg.Snapshot().Loading)
	agg.Load(context.Background())

	snap := agg.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, Metrics{TotalRegistrations: 3, TodayRegistrations: 2, ActiveTrials: 1, ExpiredTrials: 2}, snap.Metrics)

	require.Len(t, snap.Registrations, 3)
	assert.Equal(t, []string{"r2", "r3", "r1"}, []string{snap.Registrations[0].ID, snap.Registrations[1].ID, snap.Registrations[2].ID})
	assert.Equal(t, "t2", snap.Trials[0].ID)

	require.Len(t, snap.Comments, 3)
	assert.Equal(t, "c3", snap.Comments[0].ID)
	assert.Equal(t, "Ann", snap.Comments[0].AuthorName)
	assert.Equal(t, UnknownAuthor, snap.Comments[1].AuthorName)
	profiles.AssertExpectations(t)
}

func TestAggregator_TodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	repo := &memRepo{registrations: []models.Registration{
		// 10 марта 01:00 UTC это 9 марта 22:00 в UTC-3
		{ID: "r1", CreatedAt: time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)},
	}}
	agg := New(Options{
		Repo: repo, Profiles: new(ProfilesMock), Subscriber: changefeed.NewHub(sl.Discard(), 0),
		Now: func() time.Time { return now }, Location: loc, Log: sl.Discard(),
	})
	agg.Load(context.Background())

	assert.Equal(t, 0, agg.Snapshot().Metrics.TodayRegistrations)
}

func TestAggregator_TrialInsertEventRecomputesCounts(t *testing.T) {
	repo := &memRepo{trials: []models.TrialWithProfile{
		trialRow("t1", "u1", now.Add(-30*24*time.Hour), now.Add(-10*24*time.Hour)),
	}}
	hub := changefeed.NewHub(sl.Discard(), 0)
	defer hub.Close()

	agg := newAggregator(repo, new(ProfilesMock), hub, time.Hour)
	agg.Load(context.Background())
	agg.Start(context.Background())
	defer agg.Close()
	<-agg.Updates()
	require.Equal(t, Metrics{ExpiredTrials: 1}, agg.Snapshot().Metrics)

	inserted := trialRow("t2", "u2", now, now.Add(20*24*time.Hour))
	repo.addTrial(inserted)
	row, err := json.Marshal(inserted.Trial)
	require.NoError(t, err)
	ev := changefeed.Event{Op: changefeed.OpInsert, Table: "trials", Row: row}
	hub.Publish(ev)

	require.Eventually(t, func() bool {
		return agg.Snapshot().Metrics == Metrics{ActiveTrials: 1, ExpiredTrials: 1}
	}, time.Second, 5*time.Millisecond)

	// повтор того же события не меняет состояние
	before := agg.Snapshot()
	hub.Publish(ev)
	require.Eventually(t, func() bool { return repo.reloads("trials") >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, before.Metrics, agg.Snapshot().Metrics)
	assert.Len(t, agg.Snapshot().Trials, 2)
}

func TestAggregator_DuplicateEventsReplaceCollections(t *testing.T) {
	stored := trialRow("t2", "u2", now, now.Add(20*24*time.Hour))
	repo := &memRepo{trials: []models.TrialWithProfile{
		trialRow("t1", "u1", now.Add(-30*24*time.Hour), now.Add(-10*24*time.Hour)),
		stored,
	}}
	hub := changefeed.NewHub(sl.Discard(), 0)
	defer hub.Close()

	agg := newAggregator(repo, new(ProfilesMock), hub, time.Hour)
	agg.Load(context.Background())
	agg.Start(context.Background())
	defer agg.Close()
	<-agg.Updates()
	once := agg.Snapshot()
	require.Equal(t, Metrics{ActiveTrials: 1, ExpiredTrials: 1}, once.Metrics)

	insertOf := func(tr models.TrialWithProfile) changefeed.Event {
		row, err := json.Marshal(tr.Trial)
		require.NoError(t, err)
		return changefeed.Event{Op: changefeed.OpInsert, Table: "trials", Row: row}
	}

	ev := insertOf(stored)
	hub.Publish(ev)
	hub.Publish(ev)
	require.Eventually(t, func() bool { return repo.reloads("trials") >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, once, agg.Snapshot())

	// строка события, которой нет в хранилище, не попадает в коллекцию
	phantom := insertOf(trialRow("t9", "u9", now, now.Add(time.Hour)))
	hub.Publish(phantom)
	hub.Publish(phantom)
	require.Eventually(t, func() bool { return repo.reloads("trials") >= 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, once, agg.Snapshot())
}

func TestAggregator_ReloadFailureKeepsPreviousData(t *testing.T) {
	repo := &memRepo{trials: []models.TrialWithProfile{
		trialRow("t1", "u1", now.Add(-time.Hour), now.Add(time.Hour)),
	}}
	hub := changefeed.NewHub(sl.Discard(), 0)
	defer hub.Close()

	agg := newAggregator(repo, new(ProfilesMock), hub, time.Hour)
	agg.Load(context.Background())
	agg.Start(context.Background())
	defer agg.Close()

	repo.mu.Lock()
	repo.trialsErr = errors.New("timeout")
	repo.mu.Unlock()
	hub.Publish(changefeed.Event{Op: changefeed.OpUpdate, Table: "trials", Row: json.RawMessage(`{}`)})

	require.Eventually(t, func() bool { return repo.reloads("trials") >= 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, agg.Snapshot().Trials, 1)
}

func TestAggregator_IntervalReloadsEverything(t *testing.T) {
	repo := &memRepo{}
	hub := changefeed.NewHub(sl.Discard(), 0)
	defer hub.Close()

	agg := newAggregator(repo, new(ProfilesMock), hub, 10*time.Millisecond)
	agg.Load(context.Background())
	agg.Start(context.Background())
	defer agg.Close()

	require.Eventually(t, func() bool {
		return repo.reloads("registrations") >= 3 && repo.reloads("trials") >= 3 && repo.reloads("comments") >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestAggregator_CloseReleasesSubscriptions(t *testing.T) {
	hub := changefeed.NewHub(sl.Discard(), 0)
	defer hub.Close()

	agg := newAggregator(&memRepo{}, new(ProfilesMock), hub, time.Hour)
	agg.Start(context.Background())
	assert.Equal(t, 3, hub.Len())

	agg.Close()
	agg.Close()
	assert.Equal(t, 0, hub.Len())
}
