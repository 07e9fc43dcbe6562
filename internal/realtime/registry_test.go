package realtime

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *registry {
	return newRegistry(clockwork.NewRealClock(), defaultSinkBuffer)
}

func TestRegistry_AddAndCount(t *testing.T) {
	reg := newTestRegistry()

	reg.add("u1", "s1")
	reg.add("u1", "s2")
	reg.add("u2", "s3")

	assert.Equal(t, 3, reg.count())
	assert.Equal(t, 2, reg.userCount())
	assert.Equal(t, 2, reg.sessionCount("u1"))
	assert.Equal(t, 1, reg.sessionCount("u2"))
	assert.True(t, reg.hasUser("u1"))
	assert.False(t, reg.hasUser("u3"))
}

func TestRegistry_RemoveDeletesEmptyUserSet(t *testing.T) {
	reg := newTestRegistry()

	reg.add("u1", "s1")
	reg.add("u1", "s2")

	reg.remove("s1")
	assert.Equal(t, 1, reg.count())
	assert.True(t, reg.hasUser("u1"))

	reg.remove("s2")
	assert.Equal(t, 0, reg.count())
	assert.Equal(t, 0, reg.userCount())
	assert.False(t, reg.hasUser("u1"), "empty user sets must be removed eagerly")
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	reg := newTestRegistry()
	reg.remove("nope")
	assert.Equal(t, 0, reg.count())
}

func TestRegistry_AddReplacesExistingSession(t *testing.T) {
	reg := newTestRegistry()

	first := reg.add("u1", "s1")
	second := reg.add("u1", "s1")

	assert.Equal(t, 1, reg.count())
	assert.Equal(t, 1, reg.sessionCount("u1"))

	// The replaced sink is closed; the new one is live.
	assert.True(t, first.closed)
	assert.False(t, second.closed)
}

func TestRegistry_ReplaceAcrossUsersRebindsSession(t *testing.T) {
	reg := newTestRegistry()

	reg.add("u1", "s1")
	reg.add("u2", "s1")

	assert.Equal(t, 1, reg.count())
	assert.False(t, reg.hasUser("u1"))
	assert.True(t, reg.hasUser("u2"))
}

func TestRegistry_ForUserIteratesOnlyThatUser(t *testing.T) {
	reg := newTestRegistry()

	reg.add("u1", "s1")
	reg.add("u1", "s2")
	reg.add("u2", "s3")

	var seen []string
	reg.forUser("u1", func(c *connection) { seen = append(seen, c.sessionID) })
	require.Len(t, seen, 2)
	assert.ElementsMatch(t, []string{"s1", "s2"}, seen)

	seen = nil
	reg.forUser("unknown", func(c *connection) { seen = append(seen, c.sessionID) })
	assert.Empty(t, seen)
}

func TestRegistry_ForEachIteratesAll(t *testing.T) {
	reg := newTestRegistry()

	reg.add("u1", "s1")
	reg.add("u2", "s2")

	var seen []string
	reg.forEach(func(c *connection) { seen = append(seen, c.sessionID) })
	assert.ElementsMatch(t, []string{"s1", "s2"}, seen)
}
