package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/dates"
	"github.com/spigell/internship-recommender/internal/store"
)

type ApplicationsHandler struct {
	Store  Store
	Clock  dates.Clock
	Logger *zap.Logger
}

// upsertBody mirrors store.ApplicationInput with a lenient deadline.
type upsertBody struct {
	Title               string           `json:"title"`
	Company             string           `json:"company"`
	Location            string           `json:"location"`
	Duration            string           `json:"duration"`
	Stipend             any              `json:"stipend"`
	ApplicationDeadline string           `json:"applicationDeadline"`
	Description         string           `json:"description"`
	Status              store.Status     `json:"status"`
	SourceType          store.SourceType `json:"sourceType"`
	SourceID            any              `json:"sourceId"`
}

type noteBody struct {
	Author  string `json:"author"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

func (b upsertBody) input() (store.ApplicationInput, error) {
	in := store.ApplicationInput{
		Title:       b.Title,
		Company:     b.Company,
		Location:    b.Location,
		Duration:    b.Duration,
		Description: b.Description,
		Status:      b.Status,
		SourceType:  b.SourceType,
	}
	// non-numeric stipends are stored as 0
	if n, ok := b.Stipend.(float64); ok {
		in.Stipend = int(n)
	}
	if b.SourceID != nil {
		in.SourceID = strings.TrimSpace(fmt.Sprint(b.SourceID))
	}

	deadline, err := parseOptionalTime(b.ApplicationDeadline)
	if err != nil {
		return in, fmt.Errorf("applicationDeadline: %w", err)
	}
	in.ApplicationDeadline = deadline
	return in, nil
}

// parseOptionalTime accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
// A blank value yields nil.
func parseOptionalTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

// decodePatch builds a patch from the whitelisted keys of raw; other keys are
// ignored.
func decodePatch(raw map[string]json.RawMessage) (store.ApplicationPatch, error) {
	var patch store.ApplicationPatch

	if v, ok := raw["status"]; ok {
		var status store.Status
		if err := json.Unmarshal(v, &status); err != nil {
			return patch, fmt.Errorf("status: %w", err)
		}
		patch.Status = &status
	}
	if v, ok := raw["priority"]; ok {
		var priority store.Priority
		if err := json.Unmarshal(v, &priority); err != nil {
			return patch, fmt.Errorf("priority: %w", err)
		}
		patch.Priority = &priority
	}

	var err error
	if patch.InterviewDate, err = decodeTimePatch(raw, "interviewDate"); err != nil {
		return patch, err
	}
	if patch.FollowUpDate, err = decodeTimePatch(raw, "followUpDate"); err != nil {
		return patch, err
	}

	if v, ok := raw["notes"]; ok {
		var bodies []noteBody
		if err := json.Unmarshal(v, &bodies); err != nil {
			return patch, fmt.Errorf("notes: %w", err)
		}
		notes := make([]store.Note, 0, len(bodies))
		for _, b := range bodies {
			date, err := parseOptionalTime(b.Date)
			if err != nil {
				return patch, fmt.Errorf("notes: %w", err)
			}
			note := store.Note{Author: b.Author, Content: b.Content}
			if date != nil {
				note.Date = *date
			}
			notes = append(notes, note)
		}
		patch.Notes = &notes
	}

	return patch, nil
}

func decodeTimePatch(raw map[string]json.RawMessage, key string) (store.TimePatch, error) {
	v, ok := raw[key]
	if !ok {
		return store.TimePatch{}, nil
	}
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return store.TimePatch{}, fmt.Errorf("%s: %w", key, err)
	}
	if s == nil {
		return store.TimePatch{Set: true}, nil
	}
	t, err := parseOptionalTime(*s)
	if err != nil {
		return store.TimePatch{}, fmt.Errorf("%s: %w", key, err)
	}
	return store.TimePatch{Set: true, Value: t}, nil
}

func (h ApplicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Store.ListApplications(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to fetch applications")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h ApplicationsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var body upsertBody
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	in, err := body.input()
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	app, err := h.Store.UpsertApplication(r.Context(), UserIDFrom(r.Context()), in)
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to upsert application")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"application": app})
}

func (h ApplicationsHandler) UpdateByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/api/applications/")
	if !ok {
		WriteError(w, r, http.StatusNotFound, "not_found", "application not found")
		return
	}

	var raw map[string]json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	patch, err := decodePatch(raw)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	app, err := h.Store.UpdateApplication(r.Context(), UserIDFrom(r.Context()), id, patch)
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to update application")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"application": app})
}

func (h ApplicationsHandler) UpcomingDeadlines(w http.ResponseWriter, r *http.Request) {
	deadlines, err := h.Store.UpcomingDeadlines(r.Context(), UserIDFrom(r.Context()), h.Clock())
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to fetch upcoming deadlines")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"deadlines": deadlines})
}

func (h ApplicationsHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	activities, err := h.Store.RecentActivity(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to fetch recent activity")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"activities": activities})
}
