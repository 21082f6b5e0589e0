// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignedSetClaim(t *testing.T) {
	set := NewAssignedSet(map[string]string{"Q140": "r1"})

	ok, holder := set.Claim("Q140", "r2")
	assert.False(t, ok)
	assert.Equal(t, "r1", holder)

	// A record re-claiming its own identifier succeeds.
	ok, _ = set.Claim("Q140", "r1")
	assert.True(t, ok)

	ok, _ = set.Claim("Q35255", "r2")
	assert.True(t, ok)
	assert.Equal(t, 2, set.Len())
}

func TestAssignedSetReleaseIgnoresOtherHolders(t *testing.T) {
	set := NewAssignedSet(map[string]string{"Q140": "r1"})

	set.Release("Q140", "r2")
	holder, ok := set.Holder("Q140")
	assert.True(t, ok)
	assert.Equal(t, "r1", holder)

	set.Release("Q140", "r1")
	_, ok = set.Holder("Q140")
	assert.False(t, ok)
}

func TestAssignedSetReassign(t *testing.T) {
	set := NewAssignedSet(map[string]string{"Q140": "r1"})

	set.Reassign("Q140", "Q2865759", "r1")
	_, taken := set.Holder("Q140")
	assert.False(t, taken)
	holder, _ := set.Holder("Q2865759")
	assert.Equal(t, "r1", holder)

	// Reassigning to none just releases.
	set.Reassign("Q2865759", "", "r1")
	assert.Equal(t, 0, set.Len())
}

func TestAssignedSetConcurrentClaimsAreExclusive(t *testing.T) {
	set := NewAssignedSet(nil)

	const claimants = 64
	var wg sync.WaitGroup
	winners := make(chan string, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			localID := fmt.Sprintf("r%d", i)
			if ok, _ := set.Claim("Q140", localID); ok {
				winners <- localID
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var won int
	for range winners {
		won++
	}
	assert.Equal(t, 1, won)
}
