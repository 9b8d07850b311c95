package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/chrono"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/timetable"

	"github.com/stretchr/testify/require"
)

var (
	almaty    = time.FixedZone("ALMT", 5*60*60)
	testCal   = calendar.New(time.Date(2026, time.January, 26, 0, 0, 0, 0, almaty), almaty)
	testNow   = time.Date(2026, time.February, 4, 10, 0, 0, 0, almaty)
	testCreds = timetable.Credentials{Username: "student", Password: "secret"}
)

type fakeAcquirer struct {
	matrix timetable.Matrix
	err    error
	calls  atomic.Int32
	// block, when set, holds every call until it is closed
	block chan struct{}
}

func (f *fakeAcquirer) AcquireSchedule(ctx context.Context, creds timetable.Credentials) (timetable.Matrix, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.matrix, nil
}

func newTestPolicy(t *testing.T, acquirer acquisition.Acquirer, opts ...PolicyOption) (*Policy, SQLiteStore, *telemetry.Recorder) {
	store := newTestStore(t)
	tel := &telemetry.Recorder{}
	policy := NewPolicy(store, acquirer, testCal, chrono.FixedImpl{Time: testNow}, tel, opts...)
	return policy, store, tel
}

func seed(t *testing.T, store Store, fetchedAt time.Time) {
	require.NoError(t, store.Save(context.Background(), Snapshot{
		Credentials: testCreds,
		Matrix:      sampleMatrix("Старое"),
		FetchedAt:   fetchedAt,
	}))
}

func TestLoadWithoutSession(t *testing.T) {
	policy, _, _ := newTestPolicy(t, &fakeAcquirer{})
	_, refresh, err := policy.Load(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	require.Nil(t, refresh)
}

func TestLoadFreshDoesNotRefresh(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: sampleMatrix("Новое")}
	policy, store, _ := newTestPolicy(t, acquirer)
	seed(t, store, testNow.Add(-time.Hour))

	snapshot, refresh, err := policy.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Старое", snapshot.Matrix[0][0][0].Subject)
	require.False(t, refresh.Triggered())

	_, refreshed := refresh.Wait(context.Background())
	require.False(t, refreshed)
	require.Equal(t, int32(0), acquirer.calls.Load())
}

func TestLoadStaleRefreshes(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: sampleMatrix("Новое"), block: make(chan struct{})}
	var reloaded []Snapshot
	var mu sync.Mutex
	policy, store, _ := newTestPolicy(t, acquirer, WithReload(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, s)
	}))
	seed(t, store, testNow.Add(-7*time.Hour))

	// the cached schedule is served before the refresh finishes
	snapshot, refresh, err := policy.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Старое", snapshot.Matrix[0][0][0].Subject)
	require.True(t, refresh.Triggered())
	close(acquirer.block)

	refreshed, ok := refresh.Wait(context.Background())
	require.True(t, ok)
	require.Equal(t, "Новое", refreshed.Matrix[0][0][0].Subject)
	require.True(t, testNow.Equal(refreshed.FetchedAt))

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Новое", cached.Matrix[0][0][0].Subject)
	require.True(t, testNow.Equal(cached.FetchedAt))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reloaded, 1)
	require.Equal(t, int32(1), acquirer.calls.Load())
}

func TestLoadStaleRefreshFailureKeepsCache(t *testing.T) {
	acquirer := &fakeAcquirer{err: acquisition.ErrTimeoutOrMarkupChanged}
	reloads := 0
	policy, store, tel := newTestPolicy(t, acquirer, WithReload(func(Snapshot) {
		reloads++
	}))
	seed(t, store, testNow.Add(-7*time.Hour))

	_, refresh, err := policy.Load(context.Background())
	require.NoError(t, err)
	require.True(t, refresh.Triggered())

	_, ok := refresh.Wait(context.Background())
	require.False(t, ok)
	require.Equal(t, 0, reloads)

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Старое", cached.Matrix[0][0][0].Subject)

	warnings := tel.Reports(telemetry.KindWarning)
	require.Len(t, warnings, 1)
	require.Equal(t, "cache: "+report_policy_refresh, warnings[0].ID)
}

func TestRefreshAfterLogoutIsDropped(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: sampleMatrix("Новое"), block: make(chan struct{})}
	policy, store, _ := newTestPolicy(t, acquirer)
	seed(t, store, testNow.Add(-7*time.Hour))

	_, refresh, err := policy.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, policy.Logout(context.Background()))
	close(acquirer.block)

	_, ok := refresh.Wait(context.Background())
	require.False(t, ok)
	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestIsStale(t *testing.T) {
	policy, _, _ := newTestPolicy(t, &fakeAcquirer{})
	require.True(t, policy.IsStale(testNow.Add(-7*time.Hour)))
	require.False(t, policy.IsStale(testNow.Add(-time.Hour)))
	require.False(t, policy.IsStale(testNow.Add(-6*time.Hour)))

	short, _, _ := newTestPolicy(t, &fakeAcquirer{}, WithWindow(time.Minute))
	require.True(t, short.IsStale(testNow.Add(-time.Hour)))
}

func TestLogin(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: sampleMatrix("Физика")}
	policy, store, _ := newTestPolicy(t, acquirer)

	snapshot, err := policy.Login(context.Background(), testCreds)
	require.NoError(t, err)
	require.True(t, testNow.Equal(snapshot.FetchedAt))

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, testCreds, cached.Credentials)
	require.Equal(t, "Физика", cached.Matrix[0][0][0].Subject)
}

func TestLoginFailureKeepsPreviousSession(t *testing.T) {
	acquirer := &fakeAcquirer{err: acquisition.ErrInvalidCredentials}
	policy, store, _ := newTestPolicy(t, acquirer)
	seed(t, store, testNow.Add(-time.Hour))

	_, err := policy.Login(context.Background(), timetable.Credentials{Username: "other", Password: "bad"})
	require.ErrorIs(t, err, acquisition.ErrInvalidCredentials)

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, testCreds, cached.Credentials)
}

func TestLoginRequiresCredentials(t *testing.T) {
	acquirer := &fakeAcquirer{}
	policy, _, _ := newTestPolicy(t, acquirer)

	_, err := policy.Login(context.Background(), timetable.Credentials{Username: "student"})
	require.ErrorIs(t, err, timetable.ErrMissingCredentials)
	require.Equal(t, int32(0), acquirer.calls.Load())
}

func TestSelectedCycle(t *testing.T) {
	policy, _, _ := newTestPolicy(t, &fakeAcquirer{})
	// 2026-02-04 is in the second week after the epoch
	require.Equal(t, calendar.CycleB, policy.SelectedCycle(""))
	require.Equal(t, calendar.CycleA, policy.SelectedCycle(calendar.CycleA))
}

type fakeCron struct {
	specs     []string
	callbacks []func()
}

func (f *fakeCron) Cron(spec string, callback func()) error {
	if spec == "" {
		return errors.New("empty spec")
	}
	f.specs = append(f.specs, spec)
	f.callbacks = append(f.callbacks, callback)
	return nil
}

func (f *fakeCron) Stop() {}

func TestWatch(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: sampleMatrix("Новое")}
	policy, store, _ := newTestPolicy(t, acquirer)
	cron := &fakeCron{}

	require.NoError(t, policy.Watch(context.Background(), cron, "*/30 * * * *"))
	require.Equal(t, []string{"*/30 * * * *"}, cron.specs)

	// no session, nothing to do
	cron.callbacks[0]()
	require.Equal(t, int32(0), acquirer.calls.Load())

	seed(t, store, testNow.Add(-7*time.Hour))
	cron.callbacks[0]()
	require.Equal(t, int32(1), acquirer.calls.Load())

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Новое", cached.Matrix[0][0][0].Subject)

	require.Error(t, policy.Watch(context.Background(), cron, ""))
}

func TestForcedRefresh(t *testing.T) {
	acquirer := &fakeAcquirer{matrix: sampleMatrix("Новое")}
	policy, store, _ := newTestPolicy(t, acquirer)

	_, err := policy.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoSession)

	seed(t, store, testNow.Add(-time.Minute))
	snapshot, err := policy.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Новое", snapshot.Matrix[0][0][0].Subject)

	acquirer.err = acquisition.ErrInvalidCredentials
	_, err = policy.Refresh(context.Background())
	require.ErrorIs(t, err, acquisition.ErrInvalidCredentials)
}
