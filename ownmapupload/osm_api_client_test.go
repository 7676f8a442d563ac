package ownmapupload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          string
}

func newTestOSMAPIClient(t *testing.T, handler http.HandlerFunc) (*OSMAPIClient, *[]recordedRequest) {
	var requests []recordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		requests = append(requests, recordedRequest{r.Method, r.URL.Path, r.Header.Get("Authorization"), string(b)})
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewOSMAPIClient(OSMAPIClientConfig{
		BaseURL:     server.URL + "/api/0.6/",
		AccessToken: "abc123",
		Generator:   "ownmap-edits test",
	}, server.Client())

	return client, &requests
}

func TestOSMAPIClient_GetElement(t *testing.T) {
	client, requests := newTestOSMAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/0.6/node/5":
			w.Write([]byte(`<osm version="0.6"><node id="5" visible="true" version="3" lat="59.91" lon="10.75"><tag k="amenity" v="bench"/></node></osm>`))
		case "/api/0.6/node/6":
			w.WriteHeader(http.StatusNotFound)
		case "/api/0.6/node/7":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	element, err := client.GetElement(context.Background(), ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: 5})
	require.Nil(t, err)
	assert.Equal(t, &ownmap.Node{ID: 5, Version: 3, Lat: 59.91, Lon: 10.75, Tags: ownmap.TagMap{"amenity": "bench"}}, element)
	assert.Equal(t, "GET", (*requests)[0].Method)

	_, err = client.GetElement(context.Background(), ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: 6})
	require.NotNil(t, err)
	assert.True(t, ownmapedits.IsConflict(err))

	_, err = client.GetElement(context.Background(), ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: 7})
	require.NotNil(t, err)
	assert.True(t, ownmapedits.IsConflict(err))

	_, err = client.GetElement(context.Background(), ownmap.ElementKey{Type: ownmap.ObjectTypeNode, ID: 8})
	require.NotNil(t, err)
	assert.False(t, ownmapedits.IsConflict(err))
}

func TestOSMAPIClient_OpenCloseChangeset(t *testing.T) {
	client, requests := newTestOSMAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/0.6/changeset/create":
			w.Write([]byte("1234\n"))
		case "/api/0.6/changeset/1234/close":
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	changesetID, err := client.OpenChangeset(context.Background(), ownmap.TagMap{"comment": "AddBench"})
	require.Nil(t, err)
	assert.Equal(t, int64(1234), changesetID)

	err = client.CloseChangeset(context.Background(), changesetID)
	require.Nil(t, err)

	require.Len(t, *requests, 2)
	open := (*requests)[0]
	assert.Equal(t, http.MethodPut, open.Method)
	assert.Equal(t, "Bearer abc123", open.Authorization)
	assert.Contains(t, open.Body, `k="comment" v="AddBench"`)

	assert.Equal(t, http.MethodPut, (*requests)[1].Method)
	assert.Equal(t, "/api/0.6/changeset/1234/close", (*requests)[1].Path)
}

func TestOSMAPIClient_UploadChanges(t *testing.T) {
	client, requests := newTestOSMAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<diffResult version="0.6">
	<node old_id="-1" new_id="1001" new_version="1"/>
	<node old_id="5" new_id="5" new_version="4"/>
	<node old_id="6"/>
</diffResult>`))
	})

	elements := []ownmap.Element{
		&ownmap.Node{ID: -1, Lat: 1, Lon: 2},
		&ownmap.Node{ID: 5, Version: 3, Lat: 1, Lon: 3},
		&ownmap.Node{ID: 6, Version: 1, Lat: 1, Lon: 4, Deleted: true},
	}

	diffResult, err := client.UploadChanges(context.Background(), 7, elements)
	require.Nil(t, err)

	assert.Equal(t, []*DiffResultEntry{
		{ElementType: ownmap.ObjectTypeNode, OldID: -1, NewID: 1001, NewVersion: 1},
		{ElementType: ownmap.ObjectTypeNode, OldID: 5, NewID: 5, NewVersion: 4},
		{ElementType: ownmap.ObjectTypeNode, OldID: 6},
	}, diffResult)
	assert.True(t, diffResult[2].IsDeleted())

	require.Len(t, *requests, 1)
	upload := (*requests)[0]
	assert.Equal(t, http.MethodPost, upload.Method)
	assert.Equal(t, "/api/0.6/changeset/7/upload", upload.Path)
	assert.Contains(t, upload.Body, `<osmChange`)
	assert.Contains(t, upload.Body, `<create`)
	assert.Contains(t, upload.Body, `<modify`)
	assert.Contains(t, upload.Body, `<delete`)
	assert.Contains(t, upload.Body, `<node id="-1"`)
	assert.Contains(t, upload.Body, `changeset="7"`)
}

func TestOSMAPIClient_UploadChangesErrors(t *testing.T) {
	type testCase struct {
		name               string
		statusCode         int
		body               string
		expectConflict     bool
		expectClosedChange bool
	}

	testCases := []testCase{
		{"changeset closed", http.StatusConflict, "The changeset 7 was closed at 2020-01-01 12:00:00 UTC", false, true},
		{"version mismatch", http.StatusConflict, "Version mismatch: Provided 2, server had: 3 of Node 5", true, false},
		{"precondition failed", http.StatusPreconditionFailed, "Precondition failed: Node 5 is still used by ways 100", true, false},
		{"element gone", http.StatusGone, "The node with the id 5 has already been deleted", true, false},
		{"element not found", http.StatusNotFound, "Placeholder node not found for reference -3 in way -1", true, false},
		{"server error", http.StatusInternalServerError, "oops", false, false},
		{"unauthorized", http.StatusUnauthorized, "Couldn't authenticate you", false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestOSMAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			_, err := client.UploadChanges(context.Background(), 7, []ownmap.Element{&ownmap.Node{ID: 5, Version: 2}})
			require.NotNil(t, err)
			assert.Equal(t, tc.expectConflict, ownmapedits.IsConflict(err))
			assert.Equal(t, tc.expectClosedChange, isChangesetClosed(err))
		})
	}
}
