package movement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type grid struct {
	r       int
	blocked map[Pos]bool
}

func (g grid) InBounds(p Pos) bool {
	return p.X >= -g.r && p.X <= g.r && p.Z >= -g.r && p.Z <= g.r
}
func (g grid) Blocked(p Pos) bool { return g.blocked[p] }

func TestStepPrefersLongerAxis(t *testing.T) {
	g := grid{r: 10}
	next, ok := Step(Pos{}, Pos{X: 3, Z: 1}, 8, g)
	require.True(t, ok)
	assert.Equal(t, Pos{X: 1}, next)

	next, ok = Step(Pos{}, Pos{X: -1, Z: -4}, 8, g)
	require.True(t, ok)
	assert.Equal(t, Pos{Z: -1}, next)
}

func TestStepAtTarget(t *testing.T) {
	_, ok := Step(Pos{X: 2, Z: 2}, Pos{X: 2, Z: 2}, 8, grid{r: 10})
	assert.False(t, ok)
}

func TestStepFallsBackToSecondaryAxis(t *testing.T) {
	g := grid{r: 10, blocked: map[Pos]bool{{X: 1}: true}}
	next, ok := Step(Pos{}, Pos{X: 3, Z: 2}, 8, g)
	require.True(t, ok)
	assert.Equal(t, Pos{Z: 1}, next)
}

func TestStepDetoursAroundWall(t *testing.T) {
	// Straight line along X with a short wall across it.
	g := grid{r: 10, blocked: map[Pos]bool{{X: 1, Z: 0}: true, {X: 1, Z: -1}: true}}
	next, ok := Step(Pos{}, Pos{X: 4}, 8, g)
	require.True(t, ok)
	assert.Equal(t, Pos{Z: 1}, next)

	// Walking the returned steps reaches the target.
	p := Pos{}
	for i := 0; i < 20 && p != (Pos{X: 4}); i++ {
		p, ok = Step(p, Pos{X: 4}, 8, g)
		require.True(t, ok)
		require.False(t, g.Blocked(p))
	}
	assert.Equal(t, Pos{X: 4}, p)
}

func TestStepBoxedIn(t *testing.T) {
	g := grid{r: 10, blocked: map[Pos]bool{{X: 1}: true, {X: -1}: true, {Z: 1}: true, {Z: -1}: true}}
	_, ok := Step(Pos{}, Pos{X: 5}, 8, g)
	assert.False(t, ok)
}

func TestStepRespectsBounds(t *testing.T) {
	g := grid{r: 1}
	_, ok := Step(Pos{X: 1}, Pos{X: 3}, 0, g)
	assert.False(t, ok)
}
