package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthRegistry_UntestedIsViable(t *testing.T) {
	reg := NewHealthRegistry()
	assert.True(t, reg.Viable(KindRemote))
	assert.True(t, reg.Viable(KindSDK))
}

func TestHealthRegistry_FirstResultSticks(t *testing.T) {
	reg := NewHealthRegistry()

	reg.Record(KindSDK, false)
	assert.False(t, reg.Viable(KindSDK))

	// Later successes cannot resurrect a demoted backend.
	reg.Record(KindSDK, true)
	assert.False(t, reg.Viable(KindSDK))

	reg.Record(KindRemote, true)
	assert.True(t, reg.Viable(KindRemote))

	// Later failures cannot demote a backend that passed its first test.
	reg.Record(KindRemote, false)
	assert.True(t, reg.Viable(KindRemote))
}

func TestHealthRegistry_SnapshotIsCopy(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Record(KindSDK, true)

	snap := reg.Snapshot()
	assert.Equal(t, Health{Tested: true, Working: true}, snap[KindSDK])

	snap[KindSDK] = Health{Tested: true, Working: false}
	assert.True(t, reg.Viable(KindSDK))
}

func TestHealthRegistry_ConcurrentRecords(t *testing.T) {
	reg := NewHealthRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(ok bool) {
			defer wg.Done()
			reg.Record(KindRemote, ok)
		}(i%2 == 0)
	}
	wg.Wait()

	// Whichever record won, the flag is set and never flips afterwards.
	snap := reg.Snapshot()
	assert.True(t, snap[KindRemote].Tested)
	before := snap[KindRemote].Working
	reg.Record(KindRemote, !before)
	assert.Equal(t, before, reg.Snapshot()[KindRemote].Working)
}
