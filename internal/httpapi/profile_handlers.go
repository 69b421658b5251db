package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/store"
)

type ProfileHandler struct {
	Store  Store
	Logger *zap.Logger
}

type userView struct {
	ID      string        `json:"id"`
	Profile store.Profile `json:"profile"`
}

func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())

	profile, err := h.Store.Profile(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		profile, err = &store.Profile{Skills: []string{}}, nil
	}
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to fetch profile")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": userView{ID: userID, Profile: *profile}})
}

func (h ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var in store.Profile
	if err := decodeBody(r, &in); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	userID := UserIDFrom(r.Context())
	profile, err := h.Store.SaveProfile(r.Context(), userID, in)
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to update profile")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    userView{ID: userID, Profile: *profile},
	})
}

func (h ProfileHandler) GetSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.Store.Skills(r.Context(), UserIDFrom(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		skills, err = &store.Skills{TechSkills: []string{}, SoftSkills: []string{}}, nil
	}
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to fetch skills")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"skills": skills})
}

func (h ProfileHandler) SaveSkills(w http.ResponseWriter, r *http.Request) {
	var in store.Skills
	if err := decodeBody(r, &in); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	skills, err := h.Store.SaveSkills(r.Context(), UserIDFrom(r.Context()), in)
	if err != nil {
		writeStoreError(w, r, h.Logger, err, "failed to save skills")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"message": "Skills saved", "skills": skills})
}
