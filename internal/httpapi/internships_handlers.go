package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/recommend"
	"github.com/spigell/internship-recommender/internal/scoring"
)

type InternshipsHandler struct {
	Recommender Recommender
	Logger      *zap.Logger
}

// recommendationBody accepts both the scalar and the list shapes sent by
// clients: sector or sectors[0], location or locations[0], tech or skills.
type recommendationBody struct {
	Sector    any   `json:"sector"`
	Sectors   []any `json:"sectors"`
	Location  any   `json:"location"`
	Locations []any `json:"locations"`
	Tech      any   `json:"tech"`
	Skills    []any `json:"skills"`
}

func (b recommendationBody) query() scoring.Query {
	q := scoring.Query{
		Sector:   firstString(b.Sector, b.Sectors),
		Location: firstString(b.Location, b.Locations),
	}

	if tech, ok := b.Tech.(string); ok && strings.TrimSpace(tech) != "" {
		q.Skills = scoring.ParseSkills(tech)
		return q
	}
	for _, item := range b.Skills {
		if s := stringOf(item); s != "" {
			q.Skills = append(q.Skills, s)
		}
	}
	return q
}

func firstString(scalar any, list []any) string {
	if s, ok := scalar.(string); ok && s != "" {
		return s
	}
	if len(list) > 0 {
		return stringOf(list[0])
	}
	return ""
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	return fmt.Sprint(v)
}

func (h InternshipsHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var body recommendationBody
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	q := body.query()
	params := r.URL.Query()
	if q.Sector == "" {
		q.Sector = params.Get("sector")
	}
	if q.Location == "" {
		q.Location = params.Get("location")
	}
	if len(q.Skills) == 0 {
		q.Skills = scoring.ParseSkills(params.Get("tech"))
	}

	resp, err := h.Recommender.Recommend(r.Context(), recommend.Request{
		UserID:    UserIDFrom(r.Context()),
		Overrides: q,
	})
	if err != nil {
		h.Logger.Error("recommend failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to get recommendations")
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h InternshipsHandler) Discover(w http.ResponseWriter, r *http.Request) {
	internships, err := h.Recommender.Discover(r.Context())
	if err != nil {
		h.Logger.Error("discover failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to load internships")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"internships": internships,
		"count":       len(internships),
	})
}

func (h InternshipsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathID(r, "/api/internships/")
	id, err := strconv.Atoi(raw)
	if !ok || err != nil || id <= 0 {
		WriteError(w, r, http.StatusNotFound, "not_found", "internship not found")
		return
	}

	internship, err := h.Recommender.Listing(r.Context(), id)
	switch {
	case errors.Is(err, recommend.ErrListingNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "internship not found")
		return
	case err != nil:
		h.Logger.Error("get internship failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to fetch internship")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"internship": internship})
}
