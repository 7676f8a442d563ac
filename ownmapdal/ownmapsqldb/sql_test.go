package ownmapsqldb

import (
	"context"
	"testing"
	"time"

	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapdal/ownmapsqldb/ownmapsqlite"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/jmoiron/sqlx"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlx.DB {
	db, err := ownmapsqlite.Open(":memory:")
	require.Nil(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSQLEditStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLEditStore(newTestDB(t))
	createdAt := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	store.nowFunc = func() time.Time {
		return createdAt
	}

	tagsEdit := &ownmapedits.Edit{
		Type:            "tags",
		ElementType:     ownmap.ObjectTypeNode,
		ElementID:       10,
		OriginalElement: &ownmap.Node{ID: 10, Version: 3, Lat: 1, Lon: 2, Tags: ownmap.TagMap{"amenity": "bench"}},
		Action: ownmapedits.UpdateElementTagsAction{Changes: ownmapedits.StringMapChanges{
			{Kind: ownmapedits.StringMapEntryAdd, Key: "backrest", Value: "yes"},
		}},
		Position: ownmap.Position{Lat: 1, Lon: 2},
	}
	createEdit := &ownmapedits.Edit{
		Type:        "create",
		ElementType: ownmap.ObjectTypeNode,
		Action:      ownmapedits.CreateNodeAction{Position: ownmap.Position{Lat: 3, Lon: 4}, Tags: ownmap.TagMap{"shop": "bakery"}},
		Position:    ownmap.Position{Lat: 3, Lon: 4},
	}
	moveEdit := &ownmapedits.Edit{
		Type:        "move",
		ElementType: ownmap.ObjectTypeNode,
		Action:      ownmapedits.MoveNodeAction{Position: ownmap.Position{Lat: 3, Lon: 5}},
		Position:    ownmap.Position{Lat: 3, Lon: 4},
	}

	require.Nil(t, store.Add(ctx, tagsEdit))
	require.Nil(t, store.Add(ctx, createEdit))
	moveEdit.ElementID = createEdit.ElementID
	require.Nil(t, store.Add(ctx, moveEdit))

	assert.Equal(t, int64(1), tagsEdit.ID)
	assert.Equal(t, int64(3), moveEdit.ID)
	assert.Equal(t, int64(-1), createEdit.ElementID)

	oldest, err := store.GetOldestPending(ctx)
	require.Nil(t, err)
	assert.Equal(t, tagsEdit, oldest)

	require.Nil(t, store.MarkSyncFailed(ctx, oldest))
	assert.Equal(t, ownmapedits.SyncStateSyncFailed, oldest.State)
	require.NotNil(t, store.MarkSynced(ctx, oldest, nil))

	oldest, err = store.GetOldestPending(ctx)
	require.Nil(t, err)
	assert.Equal(t, createEdit.ID, oldest.ID)

	ids, err := store.GetIDProvider(ctx, oldest.ID)
	require.Nil(t, err)
	nodeID, err := ids.NextNodeID()
	require.Nil(t, err)
	assert.Equal(t, int64(-1), nodeID)

	err = store.MarkSynced(ctx, oldest, []ownmapedits.ElementIDUpdate{
		{ElementType: ownmap.ObjectTypeNode, OldID: -1, NewID: 999},
	})
	require.Nil(t, err)

	ids, err = store.GetIDProvider(ctx, moveEdit.ID)
	require.Nil(t, err)
	resolvedID, err := ids.Resolve(moveEdit.ElementKey())
	require.Nil(t, err)
	assert.Equal(t, int64(999), resolvedID)

	_, err = store.GetIDProvider(ctx, 100)
	require.NotNil(t, err)

	require.Nil(t, store.MarkSynced(ctx, moveEdit, nil))

	oldest, err = store.GetOldestPending(ctx)
	require.Nil(t, err)
	assert.Nil(t, oldest)

	all, err := store.GetAll(ctx)
	require.Nil(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, createEdit.Action, all[1].Action)
	assert.Nil(t, all[1].OriginalElement)
	assert.Equal(t, ownmapedits.SyncStateSynced, all[2].State)
}

func TestSQLMapData(t *testing.T) {
	ctx := context.Background()
	mapData := NewSQLMapData(newTestDB(t))

	err := mapData.Put(ctx,
		&ownmap.Node{ID: 1, Version: 1, Lat: 1, Lon: 1},
		&ownmap.Node{ID: -1, Lat: 2, Lon: 2, Tags: ownmap.TagMap{"amenity": "bench"}},
		&ownmap.Way{ID: 10, Version: 1, NodeIDs: []int64{1, -1, 1}},
		&ownmap.Relation{ID: 20, Version: 1, Members: []*ownmap.RelationMember{
			{Type: ownmap.ObjectTypeNode, Ref: -1, Role: "stop"},
		}},
	)
	require.Nil(t, err)

	ways, err := mapData.GetWaysForNode(ctx, 1)
	require.Nil(t, err)
	require.Len(t, ways, 1)

	err = mapData.UpdateAll(ctx, &ownmapedits.MapDataUpdates{
		Updated: []ownmap.Element{
			&ownmap.Node{ID: 555, Version: 1, Lat: 2, Lon: 2, Tags: ownmap.TagMap{"amenity": "bench"}},
		},
		IDUpdates: []ownmapedits.ElementIDUpdate{
			{ElementType: ownmap.ObjectTypeNode, OldID: -1, NewID: 555},
		},
	})
	require.Nil(t, err)

	_, err = mapData.GetElement(ctx, ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: -1})
	require.NotNil(t, err)

	ways, err = mapData.GetWaysForNode(ctx, 555)
	require.Nil(t, err)
	require.Len(t, ways, 1)
	assert.Equal(t, []int64{1, 555, 1}, ways[0].NodeIDs)

	relations, err := mapData.GetRelationsForNode(ctx, 555)
	require.Nil(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "stop", relations[0].Members[0].Role)

	relations, err = mapData.GetRelationsForNode(ctx, -1)
	require.Nil(t, err)
	assert.Empty(t, relations)

	err = mapData.UpdateAll(ctx, &ownmapedits.MapDataUpdates{
		Updated: []ownmap.Element{&ownmap.Node{ID: 1, Version: 2, Deleted: true}},
		Deleted: []ownmap.ElementKey{{Type: ownmap.ObjectTypeWay, ID: 10}},
	})
	require.Nil(t, err)

	_, err = mapData.GetElement(ctx, ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: 1})
	require.NotNil(t, err)

	ways, err = mapData.GetWaysForNode(ctx, 555)
	require.Nil(t, err)
	assert.Empty(t, ways)
}

func TestSQLNoteEditsStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLNoteEditsStore(newTestDB(t))

	noteEdit := &ownmapdal.NoteEdit{ElementType: ownmap.ObjectTypeNode, ElementID: -2, Text: "closed", Lat: 1, Lon: 2}
	require.Nil(t, store.Add(ctx, noteEdit))
	assert.Equal(t, int64(1), noteEdit.ID)

	err := store.UpdateElementIDs(ctx, []ownmapedits.ElementIDUpdate{
		{ElementType: ownmap.ObjectTypeNode, OldID: -2, NewID: 77},
	})
	require.Nil(t, err)

	noteEdits, err := store.GetAll(ctx)
	require.Nil(t, err)
	assert.Equal(t, []*ownmapdal.NoteEdit{
		{ID: 1, ElementType: ownmap.ObjectTypeNode, ElementID: 77, Text: "closed", Lat: 1, Lon: 2},
	}, noteEdits)
}

func TestSQLStatisticsStore(t *testing.T) {
	ctx := context.Background()
	regionSet := ownmapdal.NewRegionSet([]*ownmapdal.Region{
		{Name: "NO", Bounds: osm.Bounds{MinLat: 57, MaxLat: 72, MinLon: 4, MaxLon: 32}},
	})
	store := NewSQLStatisticsStore(newTestDB(t), regionSet)

	oslo := ownmap.Position{Lat: 59.91, Lon: 10.75}

	require.Nil(t, store.AddOne(ctx, "tags", oslo))
	require.Nil(t, store.AddOne(ctx, "tags", oslo))
	require.Nil(t, store.SubtractOne(ctx, "tags", oslo))
	require.Nil(t, store.AddOne(ctx, "create", ownmap.Position{Lat: -12, Lon: -77}))

	entries, err := store.GetAll(ctx)
	require.Nil(t, err)
	assert.Equal(t, []*ownmapdal.StatisticsEntry{
		{EditType: "create", Region: "", Count: 1},
		{EditType: "tags", Region: "NO", Count: 1},
	}, entries)
}
