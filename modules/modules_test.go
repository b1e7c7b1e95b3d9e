package modules

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	orderLock     sync.Mutex
	prepOrder     string
	startOrder    string
	shutdownOrder string
)

func record(order *string, name string) func() error {
	return func() error {
		orderLock.Lock()
		defer orderLock.Unlock()

		*order = fmt.Sprintf("%s>%s", *order, name)
		return nil
	}
}

func TestModules(t *testing.T) { //nolint:paralleltest // Uses the global module registry.
	Register("storage", record(&prepOrder, "storage"), record(&startOrder, "storage"), record(&shutdownOrder, "storage"))
	Register("stats", record(&prepOrder, "stats"), record(&startOrder, "stats"), record(&shutdownOrder, "stats"), "storage")
	Register("service", nil, record(&startOrder, "service"), record(&shutdownOrder, "service"), "storage")
	Register("analytics", nil, record(&startOrder, "analytics"), record(&shutdownOrder, "analytics"), "stats", "storage")

	require.NoError(t, Start())
	assert.True(t, StartCompleted())
	select {
	case <-WaitForStartCompletion():
	default:
		t.Fatal("start completion was not signaled")
	}

	orderLock.Lock()
	assert.Equal(t, ">storage>stats", prepOrder)
	assert.Contains(t, []string{
		">storage>service>stats>analytics",
		">storage>stats>service>analytics",
		">storage>stats>analytics>service",
	}, startOrder)
	orderLock.Unlock()

	status := Status()
	require.Len(t, status, 4)
	assert.Equal(t, "analytics", status[0].Name)
	assert.Equal(t, []string{"stats", "storage"}, status[0].Dependencies)
	for _, s := range status {
		assert.True(t, s.Started, s.Name)
		assert.False(t, s.Stopped, s.Name)
	}

	SetExitStatusCode(3)
	require.NoError(t, Shutdown())
	assert.ErrorIs(t, Shutdown(), ErrShutdownInProgress)
	assert.True(t, IsShuttingDown())
	assert.Equal(t, 3, GetExitStatusCode())

	orderLock.Lock()
	defer orderLock.Unlock()
	assert.Contains(t, []string{
		">analytics>service>stats>storage",
		">analytics>stats>service>storage",
		">service>analytics>stats>storage",
	}, shutdownOrder)
}

func TestDependencyErrors(t *testing.T) {
	t.Parallel()

	// these modules are not registered globally
	a := initNewModule("a", nil, nil, nil, "b")
	b := initNewModule("b", nil, nil, nil, "a")
	a.depModules = []*Module{b}
	b.depModules = []*Module{a}

	assert.False(t, a.ReadyToPrep())
	assert.False(t, b.ReadyToPrep())
}
