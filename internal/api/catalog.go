package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func catalogMajor(w http.ResponseWriter, r *http.Request) (int, bool) {
	major, err := strconv.Atoi(chi.URLParam(r, "major"))
	if err != nil || major < 1 {
		writeBadRequest(w, "major must be a positive integer")
		return 0, false
	}
	return major, true
}

// handleCatalogModules lists the catalog for one firmware major.
func (s *Server) handleCatalogModules(w http.ResponseWriter, r *http.Request) {
	major, ok := catalogMajor(w, r)
	if !ok {
		return
	}
	cat, err := s.catalogs.Catalog(r.Context(), major)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	modules := cat.Modules()
	writeJSON(w, http.StatusOK, map[string]any{
		"firmware_major": cat.FirmwareMajor(),
		"modules":        modules,
		"count":          len(modules),
	})
}

// handleCatalogRefresh discards the cached index and loads it again.
func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	major, ok := catalogMajor(w, r)
	if !ok {
		return
	}
	if err := s.catalogs.Refresh(r.Context(), major); err != nil {
		writeDomainError(w, err)
		return
	}
	cat, err := s.catalogs.Catalog(r.Context(), major)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"firmware_major": major,
		"count":          len(cat.Modules()),
	})
}
