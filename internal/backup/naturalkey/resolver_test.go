package naturalkey

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_RoundTrip(t *testing.T) {
	r := New()
	ids := map[string]uuid.UUID{"S001": uuid.New(), "S002": uuid.New()}
	for key, id := range ids {
		require.True(t, r.Bind(Member, id, key))
	}
	for key, id := range ids {
		assert.Equal(t, key, r.Resolve(Member, id))
		got, ok := r.Lookup(Member, r.Resolve(Member, id))
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
	assert.Equal(t, 2, r.Len(Member))
}

func TestResolver_KindsAreSeparate(t *testing.T) {
	r := New()
	stageID, taskID := uuid.New(), uuid.New()
	require.True(t, r.Bind(Stage, stageID, "Sprint 1"))
	require.True(t, r.Bind(Task, taskID, "Sprint 1"))

	got, ok := r.Lookup(Stage, "Sprint 1")
	require.True(t, ok)
	assert.Equal(t, stageID, got)
	assert.Equal(t, "", r.Resolve(Stage, taskID))
}

func TestResolver_UnknownAndEmpty(t *testing.T) {
	r := New()
	assert.False(t, r.Bind(Member, uuid.New(), ""))
	assert.False(t, r.Bind(Member, uuid.Nil, "S001"))
	assert.Equal(t, "", r.Resolve(Member, uuid.New()))
	assert.Equal(t, "", r.ResolvePtr(Member, nil))
	_, ok := r.Lookup(Member, "")
	assert.False(t, ok)
	_, ok = r.Lookup(Member, "missing")
	assert.False(t, ok)
}

func TestResolver_DuplicateKeyFirstWins(t *testing.T) {
	r := New()
	first, second := uuid.New(), uuid.New()
	require.True(t, r.Bind(Stage, first, "Review"))
	assert.False(t, r.Bind(Stage, second, "Review"))

	got, ok := r.Lookup(Stage, "Review")
	require.True(t, ok)
	assert.Equal(t, first, got)
	assert.Equal(t, "Review", r.Resolve(Stage, second))
	assert.Equal(t, []string{"Review"}, r.Ambiguous(Stage))
}

func TestResolver_RebindSameID(t *testing.T) {
	r := New()
	id := uuid.New()
	require.True(t, r.Bind(Folder, id, "Docs"))
	assert.True(t, r.Bind(Folder, id, "Docs"))
	assert.Equal(t, "Docs", r.Resolve(Folder, id))
	assert.Equal(t, 1, r.Len(Folder))
	assert.Empty(t, r.Ambiguous(Folder))
}

func TestResolver_SecondKeyIsAlias(t *testing.T) {
	r := New()
	id, other := uuid.New(), uuid.New()
	require.True(t, r.Bind(Stage, id, "Sprint 1"))
	require.True(t, r.Bind(Stage, id, "Kickoff"))

	for _, key := range []string{"Sprint 1", "Kickoff"} {
		got, ok := r.Lookup(Stage, key)
		require.True(t, ok, key)
		assert.Equal(t, id, got)
	}
	assert.Equal(t, "Sprint 1", r.Resolve(Stage, id), "first key stays canonical")
	assert.Equal(t, 1, r.Len(Stage))

	assert.False(t, r.Bind(Stage, other, "Kickoff"))
	got, _ := r.Lookup(Stage, "Kickoff")
	assert.Equal(t, id, got)
	assert.Equal(t, []string{"Kickoff"}, r.Ambiguous(Stage))
}

func TestResolver_PositionsDoNotCollideWithNames(t *testing.T) {
	r := New()
	literal, first := uuid.New(), uuid.New()
	require.True(t, r.Bind(Stage, literal, "#1"))
	require.True(t, r.Bind(StagePos, first, Position(1)))

	got, ok := r.Lookup(Stage, "#1")
	require.True(t, ok)
	assert.Equal(t, literal, got)
	got, ok = r.Lookup(StagePos, Position(1))
	require.True(t, ok)
	assert.Equal(t, first, got)
}

func TestPosition(t *testing.T) {
	assert.Equal(t, "#0", Position(0))
	assert.Equal(t, "#12", Position(12))
}
