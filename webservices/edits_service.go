package webservices

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
	"github.com/jamesrr39/ownmap-edits/ownmapupload"
)

type Uploader interface {
	Upload(ctx context.Context) (*ownmapupload.UploadResult, errorsx.Error)
}

type EditsService struct {
	logger    *logpkg.Logger
	editQueue ownmapdal.EditQueue
	mapData   ownmapdal.MapDataCache
	uploader  Uploader
	chi.Router
}

func NewEditsService(logger *logpkg.Logger, editQueue ownmapdal.EditQueue, mapData ownmapdal.MapDataCache, uploader Uploader) *EditsService {
	s := &EditsService{logger, editQueue, mapData, uploader, chi.NewRouter()}

	s.Get("/", s.handleGetAll)
	s.Post("/", s.handlePost)
	s.Post("/upload", s.handleUpload)

	return s
}

func (s *EditsService) handleGetAll(w http.ResponseWriter, r *http.Request) {
	edits, err := s.editQueue.GetAll(r.Context())
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusInternalServerError)
		return
	}

	editsJSON := []*editJSON{}
	for _, edit := range edits {
		editsJSON = append(editsJSON, editToJSON(edit))
	}

	render.JSON(w, r, editsJSON)
}

func (s *EditsService) editFromRequest(r *http.Request) (*ownmapedits.Edit, int, errorsx.Error) {
	req := new(addEditRequest)
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return nil, http.StatusBadRequest, errorsx.Wrap(err)
	}

	if req.Type == "" {
		return nil, http.StatusBadRequest, errorsx.Errorf("edit type is required")
	}
	if req.Action == nil {
		return nil, http.StatusBadRequest, errorsx.Errorf("action is required")
	}

	action, errx := req.Action.toAction()
	if errx != nil {
		return nil, http.StatusBadRequest, errx
	}

	elementType, errx := parseObjectType(req.ElementType)
	if errx != nil {
		return nil, http.StatusBadRequest, errx
	}

	edit := &ownmapedits.Edit{
		Type:            req.Type,
		ElementType:     elementType,
		ElementID:       req.ElementID,
		OriginalElement: req.OriginalElement.toElement(),
		Action:          action,
		Position:        req.Position,
	}

	if edit.OriginalElement == nil && !ownmapedits.IsCreation(action) {
		element, errx := s.mapData.GetElement(r.Context(), edit.ElementKey())
		if errx != nil {
			if errorsx.Cause(errx) == errorsx.ObjectNotFound {
				return nil, http.StatusNotFound, errx
			}
			return nil, http.StatusInternalServerError, errx
		}
		edit.OriginalElement = element
	}

	return edit, 0, nil
}

func (s *EditsService) handlePost(w http.ResponseWriter, r *http.Request) {
	edit, statusCode, err := s.editFromRequest(r)
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, statusCode)
		return
	}

	err = s.editQueue.Add(r.Context(), edit)
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, editToJSON(edit))
}

func (s *EditsService) handleUpload(w http.ResponseWriter, r *http.Request) {
	span := tracing.StartSpan(r.Context(), "upload edits")
	result, err := s.uploader.Upload(r.Context())
	span.End(r.Context())
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusBadGateway)
		return
	}

	render.JSON(w, r, result)
}
