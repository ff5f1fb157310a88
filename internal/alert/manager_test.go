package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alert model.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func fixedRule(name, service string, level model.Severity) Rule {
	return NewRule(name, func(EvalContext) (*model.Alert, error) {
		return &model.Alert{Level: level, Service: service, Message: name + " fired"}, nil
	})
}

func TestManager_DedupIdempotence(t *testing.T) {
	clock := newTestClock()
	m := NewManager(nil, zap.NewNop(), WithClock(clock.Now))
	m.AddRule(fixedRule("x_down", "X", model.SeverityCritical))

	ctx := context.Background()
	first := m.CheckAlerts(ctx, model.PerformanceMetrics{}, nil)
	require.Len(t, first, 1)
	assert.True(t, strings.HasPrefix(first[0].ID, "x_down-"))
	assert.Equal(t, clock.Now(), first[0].Timestamp)

	clock.Advance(time.Minute)
	second := m.CheckAlerts(ctx, model.PerformanceMetrics{}, nil)
	assert.Empty(t, second)

	active := m.ActiveAlerts()
	require.Len(t, active, 1)
	// the existing alert is not refreshed
	assert.Equal(t, first[0].ID, active[0].ID)
	assert.Equal(t, first[0].Timestamp, active[0].Timestamp)

	require.True(t, m.ResolveAlert(first[0].ID))
	assert.Empty(t, m.ActiveAlerts())

	third := m.CheckAlerts(ctx, model.PerformanceMetrics{}, nil)
	require.Len(t, third, 1)
	assert.NotEqual(t, first[0].ID, third[0].ID)

	active = m.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, third[0].ID, active[0].ID)
	assert.Len(t, m.Alerts(), 2)
}

func TestManager_DedupKeyIsServiceAndLevel(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	m.AddRule(fixedRule("a", "X", model.SeverityCritical))
	m.AddRule(fixedRule("b", "X", model.SeverityWarning))
	m.AddRule(fixedRule("c", "Y", model.SeverityCritical))
	m.AddRule(fixedRule("d", "X", model.SeverityCritical))

	triggered := m.CheckAlerts(context.Background(), model.PerformanceMetrics{}, nil)
	assert.Len(t, triggered, 3)

	active := m.ActiveAlerts()
	require.Len(t, active, 3)
	for i, a := range active {
		for j, b := range active {
			if i != j {
				assert.False(t, a.SameKey(b), "two active alerts share a key: %v %v", a, b)
			}
		}
	}
}

func TestManager_ResolveAlertNoOps(t *testing.T) {
	clock := newTestClock()
	m := NewManager(nil, zap.NewNop(), WithClock(clock.Now))
	m.AddRule(fixedRule("x_down", "X", model.SeverityCritical))

	triggered := m.CheckAlerts(context.Background(), model.PerformanceMetrics{}, nil)
	require.Len(t, triggered, 1)
	id := triggered[0].ID

	assert.False(t, m.ResolveAlert("does-not-exist"))
	assert.Len(t, m.Alerts(), 1)
	assert.Len(t, m.ActiveAlerts(), 1)

	require.True(t, m.ResolveAlert(id))
	resolved, ok := m.Get(id)
	require.True(t, ok)
	require.NotNil(t, resolved.ResolvedAt)
	resolvedAt := *resolved.ResolvedAt

	clock.Advance(time.Hour)
	assert.False(t, m.ResolveAlert(id))

	again, _ := m.Get(id)
	assert.True(t, again.Resolved)
	assert.Equal(t, resolvedAt, *again.ResolvedAt)
	assert.Len(t, m.Alerts(), 1)
}

func TestManager_RuleFailureIsolation(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	m.AddRule(NewRule("errors", func(EvalContext) (*model.Alert, error) {
		return nil, errors.New("rule broke")
	}))
	m.AddRule(NewRule("panics", func(EvalContext) (*model.Alert, error) {
		panic("rule exploded")
	}))
	m.AddRule(NewRule("bad_level", func(EvalContext) (*model.Alert, error) {
		return &model.Alert{Level: "fatal", Service: "Z"}, nil
	}))
	m.AddRule(NewRule("quiet", func(EvalContext) (*model.Alert, error) {
		return nil, nil
	}))
	m.AddRule(fixedRule("works", "X", model.SeverityWarning))

	triggered := m.CheckAlerts(context.Background(), model.PerformanceMetrics{}, nil)
	require.Len(t, triggered, 1)
	assert.Equal(t, "X", triggered[0].Service)
}

func TestManager_EmptyServiceDefaultsToSystem(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	m.AddRule(fixedRule("global", "", model.SeverityInfo))

	triggered := m.CheckAlerts(context.Background(), model.PerformanceMetrics{}, nil)
	require.Len(t, triggered, 1)
	assert.Equal(t, model.SystemService, triggered[0].Service)
}

func TestManager_NotifiersCalledForNewAlertsOnly(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	m.AddRule(fixedRule("x_down", "X", model.SeverityCritical))

	failing := new(MockNotifier)
	failing.On("Notify", mock.Anything, mock.AnythingOfType("model.Alert")).
		Return(errors.New("smtp down"))

	var panicked int
	panicking := NotifierFunc(func(context.Context, model.Alert) error {
		panicked++
		panic("notifier exploded")
	})

	healthy := new(MockNotifier)
	healthy.On("Notify", mock.Anything, mock.MatchedBy(func(a model.Alert) bool {
		return a.Service == "X" && a.Level == model.SeverityCritical
	})).Return(nil)

	m.AddNotifier(failing)
	m.AddNotifier(panicking)
	m.AddNotifier(healthy)

	ctx := context.Background()
	m.CheckAlerts(ctx, model.PerformanceMetrics{}, nil)
	m.CheckAlerts(ctx, model.PerformanceMetrics{}, nil)

	failing.AssertNumberOfCalls(t, "Notify", 1)
	healthy.AssertNumberOfCalls(t, "Notify", 1)
	healthy.AssertExpectations(t)
	assert.Equal(t, 1, panicked)
	assert.Len(t, m.ActiveAlerts(), 1)
}

func TestManager_RetentionEvictsOldestResolved(t *testing.T) {
	clock := newTestClock()
	m := NewManager(&ManagerConfig{MaxResolvedAlerts: 2}, zap.NewNop(), WithClock(clock.Now))

	services := []string{"A", "B", "C", "D"}
	for _, s := range services {
		m.AddRule(fixedRule("down_"+s, s, model.SeverityCritical))
	}
	m.AddRule(fixedRule("active", "E", model.SeverityWarning))

	triggered := m.CheckAlerts(context.Background(), model.PerformanceMetrics{}, nil)
	require.Len(t, triggered, 5)

	ids := make(map[string]string)
	for _, a := range triggered {
		ids[a.Service] = a.ID
	}

	// resolve in an order different from creation order
	for _, s := range []string{"C", "A", "D", "B"} {
		clock.Advance(time.Second)
		require.True(t, m.ResolveAlert(ids[s]))
	}

	all := m.Alerts()
	require.Len(t, all, 3)

	var retained []string
	for _, a := range all {
		retained = append(retained, a.Service)
	}
	// C and A were resolved first; creation order is preserved for the rest
	assert.Equal(t, []string{"B", "D", "E"}, retained)

	active := m.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "E", active[0].Service)
}

func TestManager_ConcurrentCheckKeepsDedup(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	m.AddRule(fixedRule("x_down", "X", model.SeverityCritical))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.CheckAlerts(context.Background(), model.PerformanceMetrics{}, nil)
		}()
	}
	wg.Wait()

	assert.Len(t, m.ActiveAlerts(), 1)
	assert.Len(t, m.Alerts(), 1)
}
