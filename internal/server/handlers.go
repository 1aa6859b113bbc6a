package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/lepinkainen/bookhound/internal/books"
	bherrors "github.com/lepinkainen/bookhound/internal/errors"
	"github.com/lepinkainen/bookhound/internal/isbn"
	"github.com/lepinkainen/bookhound/internal/recommend"
)

type recommendRequest struct {
	ProfileID    string           `json:"profile_id" validate:"omitempty,max=128"`
	Interests    []string         `json:"interests" validate:"omitempty,dive,required"`
	PriceCeiling *decimal.Decimal `json:"price_ceiling"`
	Formats      []string         `json:"formats" validate:"omitempty,dive,required"`
	SkipCache    bool             `json:"skip_cache"`
}

type sourceInfo struct {
	Name              string         `json:"name"`
	RequestsPerMinute int            `json:"requests_per_minute"`
	Formats           []books.Format `json:"formats"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.validateRequest(req); err != nil {
		writeError(w, err)
		return
	}

	formats, err := parseFormats(req.Formats)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.PriceCeiling != nil && req.PriceCeiling.IsNegative() {
		writeError(w, bherrors.NewValidationError("price_ceiling", "must not be negative"))
		return
	}

	opts := recommend.Options{
		OverrideInterests:    req.Interests,
		OverridePriceCeiling: req.PriceCeiling,
		OverrideFormats:      formats,
		SkipCache:            req.SkipCache,
	}

	var resp *recommend.Response
	if req.ProfileID != "" {
		resp, err = s.deps.Recommender.RecommendProfile(r.Context(), req.ProfileID, opts)
	} else {
		resp, err = s.deps.Recommender.Recommend(r.Context(), s.deps.Recommender.Defaults().Anonymous(), opts)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var opts recommend.CheckOptions
	if raw := query.Get("formats"); raw != "" {
		formats, err := parseFormats(strings.Split(raw, ","))
		if err != nil {
			writeError(w, err)
			return
		}
		opts.Formats = formats
	}
	if raw := query.Get("price_ceiling"); raw != "" {
		ceiling, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, bherrors.NewValidationError("price_ceiling", "must be a number"))
			return
		}
		opts.PriceCeiling = &ceiling
	}
	if raw := query.Get("skip_cache"); raw != "" {
		skip, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, bherrors.NewValidationError("skip_cache", "must be a boolean"))
			return
		}
		opts.SkipCache = skip
	}

	result, err := s.deps.Recommender.CheckISBN(r.Context(), chi.URLParam(r, "isbn"), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	infos := []sourceInfo{}
	for _, a := range s.deps.Sources.All() {
		info := sourceInfo{
			Name:              a.Name(),
			RequestsPerMinute: a.RateLimit().RequestsPerMinute,
			Formats:           []books.Format{},
		}
		for _, f := range books.AllFormats {
			if a.SupportsFormat(f) {
				info.Formats = append(info.Formats, f)
			}
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.deps.Profiles == nil {
		writeError(w, bherrors.NewProfileNotFoundError(id))
		return
	}

	p, err := s.deps.Profiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Cache.Stats())
}

func (s *Server) handleCachePrune(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, removedResponse{Removed: s.deps.Cache.PruneExpired()})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, removedResponse{Removed: s.deps.Cache.Clear()})
}

func (s *Server) handleCacheInvalidateISBN(w http.ResponseWriter, r *http.Request) {
	id := cacheIdentifier(chi.URLParam(r, "isbn"))
	writeJSON(w, http.StatusOK, removedResponse{Removed: s.deps.Cache.InvalidateByIdentifier(id)})
}

func (s *Server) handleCacheInvalidateSource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, removedResponse{Removed: s.deps.Cache.InvalidateBySource(chi.URLParam(r, "source"))})
}

func (s *Server) handleCacheInvalidateEntry(w http.ResponseWriter, r *http.Request) {
	id := cacheIdentifier(chi.URLParam(r, "isbn"))
	removed := 0
	if s.deps.Cache.Invalidate(id, chi.URLParam(r, "source")) {
		removed = 1
	}
	writeJSON(w, http.StatusOK, removedResponse{Removed: removed})
}

// cacheIdentifier maps any valid ISBN form to the ISBN-13 the cache is keyed by.
func cacheIdentifier(raw string) string {
	if res := isbn.Validate(raw); res.Valid {
		return res.ISBN13
	}
	return raw
}

func (s *Server) validateRequest(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return bherrors.NewValidationError(verrs[0].Field(), fmt.Sprintf("failed %s check", verrs[0].Tag()))
	}
	return bherrors.NewValidationError("", err.Error())
}

func parseFormats(raw []string) ([]books.Format, error) {
	var formats []books.Format
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		f, ok := books.ParseFormat(s)
		if !ok {
			return nil, bherrors.NewValidationError("formats", fmt.Sprintf("unknown format %q", s))
		}
		formats = append(formats, f)
	}
	return formats, nil
}
