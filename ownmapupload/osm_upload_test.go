package ownmapupload

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/go-chi/chi"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOSMServer is a minimal OSM API holding nodes, assigning ids from 1001
type testOSMServer struct {
	t                  *testing.T
	nodes              map[osm.NodeID]*osm.Node
	lastID             osm.NodeID
	uploads            []*osm.Change
	changesetCreateErr int
}

func newTestOSMServer(t *testing.T) (*testOSMServer, *OSMAPIClient) {
	s := &testOSMServer{t: t, nodes: make(map[osm.NodeID]*osm.Node), lastID: 1000}

	router := chi.NewRouter()
	router.Route("/api/0.6", func(r chi.Router) {
		r.Put("/changeset/create", s.handleCreateChangeset)
		r.Post("/changeset/{id}/upload", s.handleUpload)
		r.Get("/node/{id}", s.handleGetNode)
		r.Get("/node/{id}/ways", s.handleNoParents)
		r.Get("/node/{id}/relations", s.handleNoParents)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client := NewOSMAPIClient(OSMAPIClientConfig{
		BaseURL:   server.URL + "/api/0.6",
		Generator: "ownmap-edits test",
	}, server.Client())

	return s, client
}

func (s *testOSMServer) handleCreateChangeset(w http.ResponseWriter, r *http.Request) {
	if s.changesetCreateErr != 0 {
		w.WriteHeader(s.changesetCreateErr)
		return
	}
	w.Write([]byte("1"))
}

func (s *testOSMServer) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	require.NoError(s.t, err)

	node, ok := s.nodes[osm.NodeID(id)]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	b, err := xml.Marshal(&osm.OSM{Version: 0.6, Nodes: osm.Nodes{node}})
	require.NoError(s.t, err)
	w.Write(b)
}

func (s *testOSMServer) handleNoParents(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`<osm version="0.6"></osm>`))
}

func (s *testOSMServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	require.NoError(s.t, err)

	change := new(osm.Change)
	require.NoError(s.t, xml.Unmarshal(b, change))
	s.uploads = append(s.uploads, change)

	diffResult := `<diffResult version="0.6">`
	if change.Create != nil {
		for _, node := range change.Create.Nodes {
			s.lastID++
			oldID := node.ID
			node.ID = s.lastID
			node.Version = 1
			s.nodes[node.ID] = node
			diffResult += fmt.Sprintf(`<node old_id="%d" new_id="%d" new_version="1"/>`, oldID, node.ID)
		}
	}
	if change.Modify != nil {
		for _, node := range change.Modify.Nodes {
			existing, ok := s.nodes[node.ID]
			if !ok || existing.Version != node.Version {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(fmt.Sprintf("Version mismatch: Provided %d of Node %d", node.Version, node.ID)))
				return
			}
			node.Version++
			s.nodes[node.ID] = node
			diffResult += fmt.Sprintf(`<node old_id="%d" new_id="%d" new_version="%d"/>`, node.ID, node.ID, node.Version)
		}
	}
	diffResult += `</diffResult>`

	w.Write([]byte(diffResult))
}

func newTestOSMUploader(client *OSMAPIClient) *ElementEditUploader {
	logger := logpkg.NewLogger(os.Stderr, logpkg.LogLevelError)
	return NewElementEditUploader(logger, client, NewChangesetManager(logger, client, "ownmap-edits test", DefaultChangesetMaxIdle))
}

func TestElementEditUploader_OSMAPI_createThenMove(t *testing.T) {
	ctx := context.Background()
	server, client := newTestOSMServer(t)
	uploader := newTestOSMUploader(client)
	queue := ownmapdal.NewMemoryEditQueue()

	create := &ownmapedits.Edit{
		Type:        "AddBench",
		ElementType: ownmap.ObjectTypeNode,
		Action: ownmapedits.CreateNodeAction{
			Position: ownmap.Position{Lat: 59.91, Lon: 10.75},
			Tags:     ownmap.TagMap{"amenity": "bench"},
		},
	}

	updates, err := uploadOne(t, uploader, queue, create)
	require.Nil(t, err)
	assert.Equal(t, []ownmapedits.ElementIDUpdate{{ElementType: ownmap.ObjectTypeNode, OldID: -1, NewID: 1001}}, updates.IDUpdates)
	assert.Equal(t, []ownmap.Element{
		&ownmap.Node{ID: 1001, Version: 1, Lat: 59.91, Lon: 10.75, Tags: ownmap.TagMap{"amenity": "bench"}},
	}, updates.Updated)
	require.Nil(t, queue.MarkSynced(ctx, create, updates.IDUpdates))

	require.Len(t, server.uploads, 1)
	sent := server.uploads[0]
	assert.Equal(t, 0.6, sent.Version)
	assert.Equal(t, "ownmap-edits test", sent.Generator)
	assert.Nil(t, sent.Modify)
	assert.Nil(t, sent.Delete)
	require.NotNil(t, sent.Create)
	require.Len(t, sent.Create.Nodes, 1)
	assert.Equal(t, osm.NodeID(-1), sent.Create.Nodes[0].ID)
	assert.Equal(t, osm.ChangesetID(1), sent.Create.Nodes[0].ChangesetID)
	assert.Equal(t, "bench", sent.Create.Nodes[0].Tags.Find("amenity"))

	// queued before the node was uploaded, so it references the placeholder
	move := &ownmapedits.Edit{
		Type:            "MoveBench",
		ElementType:     ownmap.ObjectTypeNode,
		ElementID:       create.ElementID,
		OriginalElement: &ownmap.Node{ID: create.ElementID, Lat: 59.91, Lon: 10.75, Tags: ownmap.TagMap{"amenity": "bench"}},
		Action:          ownmapedits.MoveNodeAction{Position: ownmap.Position{Lat: 59.9101, Lon: 10.75}},
	}

	updates, err = uploadOne(t, uploader, queue, move)
	require.Nil(t, err)
	assert.Empty(t, updates.IDUpdates)
	assert.Equal(t, []ownmap.Element{
		&ownmap.Node{ID: 1001, Version: 2, Lat: 59.9101, Lon: 10.75, Tags: ownmap.TagMap{"amenity": "bench"}},
	}, updates.Updated)

	require.Len(t, server.uploads, 2)
	sent = server.uploads[1]
	assert.Nil(t, sent.Create)
	require.NotNil(t, sent.Modify)
	require.Len(t, sent.Modify.Nodes, 1)
	assert.Equal(t, osm.NodeID(1001), sent.Modify.Nodes[0].ID)
	assert.Equal(t, 1, sent.Modify.Nodes[0].Version)
	assert.Equal(t, 59.9101, sent.Modify.Nodes[0].Lat)
}

func TestElementEditsUploader_OSMAPI_changesetCreateFailureKeepsEditPending(t *testing.T) {
	ctx := context.Background()
	server, client := newTestOSMServer(t)
	server.nodes[5] = &osm.Node{ID: 5, Version: 3, Lat: 59.91, Lon: 10.75, Visible: true, Tags: osm.Tags{{Key: "amenity", Value: "bench"}}}

	for _, statusCode := range []int{http.StatusNotFound, http.StatusGone, http.StatusPreconditionFailed, http.StatusConflict} {
		t.Run(fmt.Sprintf("status %d", statusCode), func(t *testing.T) {
			server.changesetCreateErr = statusCode
			queue := ownmapdal.NewMemoryEditQueue()
			logger := logpkg.NewLogger(os.Stderr, logpkg.LogLevelError)
			orchestrator := NewElementEditsUploader(
				logger,
				queue,
				ownmapdal.NewMemoryNoteEditsStore(),
				ownmapdal.NewMemoryMapDataCache(),
				newTestOSMUploader(client),
				ownmapdal.NewMemoryStatisticsStore(ownmapdal.NewRegionSet(nil)),
				nil,
			)

			edit := &ownmapedits.Edit{
				Type:            "DeleteBench",
				ElementType:     ownmap.ObjectTypeNode,
				ElementID:       5,
				OriginalElement: &ownmap.Node{ID: 5, Version: 3, Lat: 59.91, Lon: 10.75, Tags: ownmap.TagMap{"amenity": "bench"}},
				Action:          ownmapedits.DeletePoiNodeAction{},
			}
			require.Nil(t, queue.Add(ctx, edit))

			result, err := orchestrator.Upload(ctx)
			require.NotNil(t, err)
			assert.False(t, ownmapedits.IsConflict(err))
			assert.Equal(t, 0, result.Discarded)

			edits, errx := queue.GetAll(ctx)
			require.Nil(t, errx)
			require.Len(t, edits, 1)
			assert.Equal(t, ownmapedits.SyncStatePending, edits[0].State)
		})
	}
}

func TestOSMAPIClient_changesetErrorsAreNotConflicts(t *testing.T) {
	_, client := newTestOSMServer(t)

	// the test server has no changeset to close
	err := client.CloseChangeset(context.Background(), 55)
	require.NotNil(t, err)
	assert.False(t, ownmapedits.IsConflict(err))
	assert.False(t, isChangesetClosed(err))

	_, isStatusErr := errorsx.Cause(err).(*unexpectedStatusError)
	assert.True(t, isStatusErr)
}
