package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

func NewInfoService(logger *logpkg.Logger, editQueue ownmapdal.EditQueue, regionSet *ownmapdal.RegionSet) *InfoService {
	ws := &InfoService{logger, editQueue, regionSet, chi.NewRouter()}
	ws.Get("/", ws.handleGet)

	return ws
}

// InfoService summarises the state of the edit queue
type InfoService struct {
	logger    *logpkg.Logger
	editQueue ownmapdal.EditQueue
	regionSet *ownmapdal.RegionSet
	chi.Router
}

type regionJSON struct {
	Name   string  `json:"name"`
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

type infoType struct {
	PendingEdits    int           `json:"pendingEdits"`
	SyncedEdits     int           `json:"syncedEdits"`
	SyncFailedEdits int           `json:"syncFailedEdits"`
	Regions         []*regionJSON `json:"regions"`
}

func (ws *InfoService) handleGet(w http.ResponseWriter, r *http.Request) {
	edits, err := ws.editQueue.GetAll(r.Context())
	if err != nil {
		errorsx.HTTPError(w, ws.logger, err, http.StatusInternalServerError)
		return
	}

	info := infoType{Regions: []*regionJSON{}}
	for _, edit := range edits {
		switch edit.State {
		case ownmapedits.SyncStatePending:
			info.PendingEdits++
		case ownmapedits.SyncStateSynced:
			info.SyncedEdits++
		case ownmapedits.SyncStateSyncFailed:
			info.SyncFailedEdits++
		}
	}

	if ws.regionSet != nil {
		for _, region := range ws.regionSet.GetRegions() {
			info.Regions = append(info.Regions, &regionJSON{
				Name:   region.Name,
				MinLat: region.Bounds.MinLat,
				MinLon: region.Bounds.MinLon,
				MaxLat: region.Bounds.MaxLat,
				MaxLon: region.Bounds.MaxLon,
			})
		}
	}

	render.JSON(w, r, info)
}
