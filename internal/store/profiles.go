package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Profile struct {
	Education string   `json:"education"`
	Skills    []string `json:"skills"`
	Sector    string   `json:"sector"`
	Location  string   `json:"location"`
}

type Skills struct {
	TechSkills []string `json:"techSkills"`
	SoftSkills []string `json:"softSkills"`
}

// StoredProfile is what a user has saved that can fill a recommendation query.
type StoredProfile struct {
	Sector        string
	Location      string
	ProfileSkills []string
	TechSkills    []string
}

// SaveProfile replaces the profile of userID.
func (d *DB) SaveProfile(ctx context.Context, userID string, p Profile) (*Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalid)
	}

	p.Skills = cleanList(p.Skills)
	skillsJSON, err := json.Marshal(p.Skills)
	if err != nil {
		return nil, fmt.Errorf("marshal profile skills: %w", err)
	}

	_, err = d.Pool.ExecContext(ctx, `
INSERT INTO profiles (user_id, education, sector, location, skills, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  education = excluded.education,
  sector = excluded.sector,
  location = excluded.location,
  skills = excluded.skills,
  updated_at = excluded.updated_at;`,
		userID, p.Education, p.Sector, p.Location, string(skillsJSON), d.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	return &p, nil
}

// Profile returns the profile of userID or ErrNotFound.
func (d *DB) Profile(ctx context.Context, userID string) (*Profile, error) {
	var (
		p          Profile
		skillsJSON string
	)
	err := d.Pool.QueryRowContext(ctx,
		`SELECT education, sector, location, skills FROM profiles WHERE user_id = ?;`, userID,
	).Scan(&p.Education, &p.Sector, &p.Location, &skillsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if p.Skills, err = decodeList(skillsJSON); err != nil {
		return nil, fmt.Errorf("decode profile skills: %w", err)
	}
	return &p, nil
}

// SaveSkills replaces the skills document of userID.
func (d *DB) SaveSkills(ctx context.Context, userID string, s Skills) (*Skills, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalid)
	}

	s.TechSkills = cleanList(s.TechSkills)
	s.SoftSkills = cleanList(s.SoftSkills)

	tech, err := json.Marshal(s.TechSkills)
	if err != nil {
		return nil, fmt.Errorf("marshal tech skills: %w", err)
	}
	soft, err := json.Marshal(s.SoftSkills)
	if err != nil {
		return nil, fmt.Errorf("marshal soft skills: %w", err)
	}

	_, err = d.Pool.ExecContext(ctx, `
INSERT INTO skills (user_id, tech_skills, soft_skills, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  tech_skills = excluded.tech_skills,
  soft_skills = excluded.soft_skills,
  updated_at = excluded.updated_at;`,
		userID, string(tech), string(soft), d.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("save skills: %w", err)
	}

	return &s, nil
}

// Skills returns the skills document of userID or ErrNotFound.
func (d *DB) Skills(ctx context.Context, userID string) (*Skills, error) {
	var tech, soft string
	err := d.Pool.QueryRowContext(ctx,
		`SELECT tech_skills, soft_skills FROM skills WHERE user_id = ?;`, userID,
	).Scan(&tech, &soft)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get skills: %w", err)
	}

	var s Skills
	if s.TechSkills, err = decodeList(tech); err != nil {
		return nil, fmt.Errorf("decode tech skills: %w", err)
	}
	if s.SoftSkills, err = decodeList(soft); err != nil {
		return nil, fmt.Errorf("decode soft skills: %w", err)
	}
	return &s, nil
}

// StoredProfile loads the profile and the skills document of userID together.
// It returns nil when the user saved neither.
func (d *DB) StoredProfile(ctx context.Context, userID string) (*StoredProfile, error) {
	var (
		profile *Profile
		skills  *Skills
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := d.Profile(gctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		s, err := d.Skills(gctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		skills = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if profile == nil && skills == nil {
		return nil, nil
	}

	stored := &StoredProfile{}
	if profile != nil {
		stored.Sector = profile.Sector
		stored.Location = profile.Location
		stored.ProfileSkills = profile.Skills
	}
	if skills != nil {
		stored.TechSkills = skills.TechSkills
	}
	return stored, nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
