package webservices

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
)

// NoteEditsService holds notes attached to elements. Notes on elements that were created locally
// follow the element to the id the remote assigns it.
type NoteEditsService struct {
	logger    *logpkg.Logger
	noteEdits ownmapdal.NoteEditsStore
	chi.Router
}

func NewNoteEditsService(logger *logpkg.Logger, noteEdits ownmapdal.NoteEditsStore) *NoteEditsService {
	s := &NoteEditsService{logger, noteEdits, chi.NewRouter()}

	s.Get("/", s.handleGetAll)
	s.Post("/", s.handlePost)

	return s
}

func (s *NoteEditsService) handleGetAll(w http.ResponseWriter, r *http.Request) {
	noteEdits, err := s.noteEdits.GetAll(r.Context())
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusInternalServerError)
		return
	}

	if noteEdits == nil {
		noteEdits = []*ownmapdal.NoteEdit{}
	}

	render.JSON(w, r, noteEdits)
}

type addNoteEditRequest struct {
	ElementType string  `json:"elementType"`
	ElementID   int64   `json:"elementId"`
	Text        string  `json:"text"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

func (s *NoteEditsService) handlePost(w http.ResponseWriter, r *http.Request) {
	req := new(addNoteEditRequest)
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		errorsx.HTTPError(w, s.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	if req.Text == "" {
		errorsx.HTTPError(w, s.logger, errorsx.Errorf("note text is required"), http.StatusBadRequest)
		return
	}

	elementType, errx := parseObjectType(req.ElementType)
	if errx != nil {
		errorsx.HTTPError(w, s.logger, errx, http.StatusBadRequest)
		return
	}

	noteEdit := &ownmapdal.NoteEdit{
		ElementType: elementType,
		ElementID:   req.ElementID,
		Text:        req.Text,
		Lat:         req.Lat,
		Lon:         req.Lon,
	}

	errx = s.noteEdits.Add(r.Context(), noteEdit)
	if errx != nil {
		errorsx.HTTPError(w, s.logger, errx, http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, noteEdit)
}
