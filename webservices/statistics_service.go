package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
)

type StatisticsService struct {
	logger     *logpkg.Logger
	statistics ownmapdal.StatisticsStore
	chi.Router
}

func NewStatisticsService(logger *logpkg.Logger, statistics ownmapdal.StatisticsStore) *StatisticsService {
	s := &StatisticsService{logger, statistics, chi.NewRouter()}
	s.Get("/", s.handleGet)

	return s
}

func (s *StatisticsService) handleGet(w http.ResponseWriter, r *http.Request) {
	entries, err := s.statistics.GetAll(r.Context())
	if err != nil {
		errorsx.HTTPError(w, s.logger, err, http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []*ownmapdal.StatisticsEntry{}
	}

	render.JSON(w, r, entries)
}
