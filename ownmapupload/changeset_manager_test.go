package ownmapupload

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jamesrr39/goutil/logpkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangesetManager_GetChangesetID(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewChangesetManager(logpkg.NewLogger(os.Stderr, logpkg.LogLevelError), api, "ownmap-edits test", time.Minute)

	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time { return now }

	benchID, err := m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)

	// reused while not idle for too long
	now = now.Add(50 * time.Second)
	id, err := m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)
	assert.Equal(t, benchID, id)

	// one changeset per edit type
	backrestID, err := m.GetChangesetID(ctx, "AddBenchBackrest")
	require.Nil(t, err)
	assert.NotEqual(t, benchID, backrestID)

	// last use was 50s ago, so this is still within the idle time
	now = now.Add(55 * time.Second)
	id, err = m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)
	assert.Equal(t, benchID, id)

	// idle for too long: closed and replaced
	now = now.Add(2 * time.Minute)
	id, err = m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)
	assert.NotEqual(t, benchID, id)
	assert.Equal(t, []int64{benchID}, api.closedChangesets)
}

func TestChangesetManager_idleChangesetAlreadyClosed(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewChangesetManager(logpkg.NewLogger(os.Stderr, logpkg.LogLevelError), api, "ownmap-edits test", time.Minute)

	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	m.nowFunc = func() time.Time { return now }

	firstID, err := m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)

	// the remote closed it on its own
	delete(api.openChangesets, firstID)

	now = now.Add(time.Hour)
	id, err := m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)
	assert.NotEqual(t, firstID, id)
}

func TestChangesetManager_Forget(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewChangesetManager(logpkg.NewLogger(os.Stderr, logpkg.LogLevelError), api, "ownmap-edits test", time.Minute)

	firstID, err := m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)

	m.Forget("AddBench")

	id, err := m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)
	assert.NotEqual(t, firstID, id)

	// forgotten changesets are not closed
	assert.Empty(t, api.closedChangesets)
}

func TestChangesetManager_CloseAll(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	m := NewChangesetManager(logpkg.NewLogger(os.Stderr, logpkg.LogLevelError), api, "ownmap-edits test", time.Minute)

	benchID, err := m.GetChangesetID(ctx, "AddBench")
	require.Nil(t, err)
	_, err = m.GetChangesetID(ctx, "AddBenchBackrest")
	require.Nil(t, err)

	// closed by the remote already, which is not an error
	delete(api.openChangesets, benchID)

	err = m.CloseAll(ctx)
	require.Nil(t, err)
	assert.Empty(t, api.openChangesets)
	assert.Len(t, api.closedChangesets, 1)

	// nothing left to close
	err = m.CloseAll(ctx)
	require.Nil(t, err)
}
