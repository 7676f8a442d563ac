package webservices

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
)

// MapDataService serves elements from the local map data cache
type MapDataService struct {
	logger  *logpkg.Logger
	mapData ownmapdal.MapDataCache
	chi.Router
}

func NewMapDataService(logger *logpkg.Logger, mapData ownmapdal.MapDataCache) *MapDataService {
	router := chi.NewRouter()
	service := &MapDataService{logger, mapData, router}

	router.Get("/{elementType}/{id}", service.handleGetElement)
	router.Get("/node/{id}/parents", service.handleGetNodeParents)
	return service
}

func parseElementID(r *http.Request) (int64, errorsx.Error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errorsx.Wrap(err)
	}
	return id, nil
}

func (s *MapDataService) handleGetElement(w http.ResponseWriter, r *http.Request) {
	elementType, err := parseObjectType(chi.URLParam(r, "elementType"))
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusBadRequest)
		return
	}

	id, err := parseElementID(r)
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusBadRequest)
		return
	}

	element, err := s.mapData.GetElement(r.Context(), ownmap.ElementKey{Type: elementType, ID: id})
	if err != nil {
		if errorsx.Cause(err) == errorsx.ObjectNotFound {
			errorsx.HTTPError(w, s.logger, err, http.StatusNotFound)
			return
		}
		errorsx.HTTPError(w, s.logger, err, http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, elementToJSON(element))
}

type nodeParentsResponseType struct {
	Ways      []*ownmap.Way      `json:"ways"`
	Relations []*ownmap.Relation `json:"relations"`
}

func (s *MapDataService) handleGetNodeParents(w http.ResponseWriter, r *http.Request) {
	id, err := parseElementID(r)
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusBadRequest)
		return
	}

	ways, err := s.mapData.GetWaysForNode(r.Context(), id)
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusInternalServerError)
		return
	}

	relations, err := s.mapData.GetRelationsForNode(r.Context(), id)
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusInternalServerError)
		return
	}

	response := nodeParentsResponseType{[]*ownmap.Way{}, []*ownmap.Relation{}}
	response.Ways = append(response.Ways, ways...)
	response.Relations = append(response.Relations, relations...)

	render.JSON(w, r, response)
}
