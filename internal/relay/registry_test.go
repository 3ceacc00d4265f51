package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/averba/model-relay/internal/relay"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRegistry_AddTouchRemove(t *testing.T) {
	r := relay.NewRegistry()

	entry := r.Add("conn-1", nil)
	assert.Equal(t, "conn-1", entry.ID)
	assert.Equal(t, 1, r.Len())

	r.Touch("conn-1")
	r.Remove("conn-1")
	assert.Equal(t, 0, r.Len())

	// Touching a removed entry is a no-op.
	r.Touch("conn-1")
}

func TestRegistry_ModelSwitch(t *testing.T) {
	r := relay.NewRegistry()
	r.Add("conn-1", nil)

	assert.Equal(t, "", r.Model("conn-1"))

	r.SetModel("conn-1", "llama3.2:3b")
	assert.Equal(t, "llama3.2:3b", r.Model("conn-1"))

	assert.Equal(t, "", r.Model("unknown"))
}

func TestRegistry_SweepClosesIdleConnections(t *testing.T) {
	r := relay.NewRegistry()

	closed := make(map[string]bool)
	r.Add("idle", func() { closed["idle"] = true })
	r.Add("fresh", func() { closed["fresh"] = true })

	// Let the idle entry age past the cutoff, then refresh the other.
	time.Sleep(20 * time.Millisecond)
	r.Touch("fresh")

	expired := r.Sweep(10 * time.Millisecond)

	assert.Equal(t, []string{"idle"}, expired)
	assert.True(t, closed["idle"])
	assert.False(t, closed["fresh"])
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SweepEmptyRegistry(t *testing.T) {
	r := relay.NewRegistry()
	assert.Empty(t, r.Sweep(time.Minute))
}

func TestRegistry_StartSweeperZeroInterval(t *testing.T) {
	r := relay.NewRegistry()

	// A zero interval from config must disable the sweeper, not panic.
	assert.NotPanics(t, func() {
		r.StartSweeper(context.Background(), 0, 0, zap.NewNop())
	})
}
