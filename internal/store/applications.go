package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/internship-recommender/internal/catalog"
)

type Status string

const (
	StatusApplied            Status = "applied"
	StatusUnderReview        Status = "under_review"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusOfferReceived      Status = "offer_received"
	StatusRejected           Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusUnderReview, StatusInterviewScheduled, StatusOfferReceived, StatusRejected:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type SourceType string

const (
	SourceCSV            SourceType = "csv"
	SourceDB             SourceType = "db"
	SourceRecommendation SourceType = "recommendation"
	SourceManual         SourceType = "manual"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceCSV, SourceDB, SourceRecommendation, SourceManual:
		return true
	}
	return false
}

type Note struct {
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Content string    `json:"content"`
}

// Application is a listing the user tracks through the status pipeline.
type Application struct {
	ID                  string     `json:"id"`
	SourceType          SourceType `json:"sourceType"`
	SourceID            string     `json:"sourceId,omitempty"`
	SourceKey           string     `json:"sourceKey,omitempty"`
	Title               string     `json:"title"`
	Company             string     `json:"company"`
	Location            string     `json:"location"`
	Duration            string     `json:"duration"`
	Stipend             int        `json:"stipend"`
	ApplicationDeadline *time.Time `json:"applicationDeadline,omitempty"`
	Description         string     `json:"description"`
	Status              Status     `json:"status"`
	Priority            Priority   `json:"priority"`
	AppliedDate         time.Time  `json:"appliedDate"`
	InterviewDate       *time.Time `json:"interviewDate,omitempty"`
	FollowUpDate        *time.Time `json:"followUpDate,omitempty"`
	Notes               []Note     `json:"notes"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ApplicationInput is the listing snapshot used to create or refresh an application.
type ApplicationInput struct {
	Title               string     `json:"title"`
	Company             string     `json:"company"`
	Location            string     `json:"location"`
	Duration            string     `json:"duration"`
	Stipend             int        `json:"stipend"`
	ApplicationDeadline *time.Time `json:"applicationDeadline"`
	Description         string     `json:"description"`
	Status              Status     `json:"status"`
	SourceType          SourceType `json:"sourceType"`
	SourceID            string     `json:"sourceId"`
}

// TimePatch updates a nullable date. Set with a nil Value clears it.
type TimePatch struct {
	Set   bool
	Value *time.Time
}

// ApplicationPatch holds the fields a user may change on a tracked application.
type ApplicationPatch struct {
	Status        *Status
	Priority      *Priority
	InterviewDate TimePatch
	FollowUpDate  TimePatch
	Notes         *[]Note
}

func (p ApplicationPatch) empty() bool {
	return p.Status == nil && p.Priority == nil && !p.InterviewDate.Set && !p.FollowUpDate.Set && p.Notes == nil
}

// Deadline is an upcoming date derived from a tracked application.
type Deadline struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	Company string    `json:"company"`
	Date    time.Time `json:"date"`
}

// Activity is a dashboard event derived from a tracked application.
type Activity struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	maxDeadlines  = 20
	maxActivities = 20
	noteExcerpt   = 80
)

const applicationColumns = `id, source_type, source_id, source_key, title, company, location, duration, stipend,
  application_deadline, description, status, priority, applied_date, interview_date, follow_up_date, notes,
  created_at, updated_at`

// UpsertApplication creates an application, or refreshes the one tracking the
// same listing. Listings are matched by their title::company::location key;
// inputs without a key always create a new row.
func (d *DB) UpsertApplication(ctx context.Context, userID string, in ApplicationInput) (*Application, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Company = strings.TrimSpace(in.Company)
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalid)
	}
	if in.Title == "" || in.Company == "" {
		return nil, fmt.Errorf("title and company are required: %w", ErrInvalid)
	}
	if in.Status == "" {
		in.Status = StatusApplied
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", in.Status, ErrInvalid)
	}
	if in.SourceType == "" {
		in.SourceType = SourceManual
	}
	if !in.SourceType.Valid() {
		return nil, fmt.Errorf("unknown source type %q: %w", in.SourceType, ErrInvalid)
	}
	if in.Stipend < 0 {
		in.Stipend = 0
	}

	key := catalog.SourceKey(in.Title, in.Company, in.Location)
	sourceKey := sql.NullString{String: key, Valid: key != ""}
	deadline := nullTime(in.ApplicationDeadline)
	now := d.timestamp()

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	if sourceKey.Valid {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM applications WHERE user_id = ? AND source_key = ?;`, userID, sourceKey,
		).Scan(&id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find application: %w", err)
		}
	}

	if id == "" {
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
INSERT INTO applications (id, user_id, source_type, source_id, source_key, title, company, location, duration,
  stipend, application_deadline, description, status, applied_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			id, userID, in.SourceType, in.SourceID, sourceKey, in.Title, in.Company, in.Location, in.Duration,
			in.Stipend, deadline, in.Description, in.Status, now, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert application: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
UPDATE applications SET source_type = ?, source_id = ?, title = ?, company = ?, location = ?, duration = ?,
  stipend = ?, application_deadline = ?, description = ?, status = ?, updated_at = ?
WHERE id = ?;`,
			in.SourceType, in.SourceID, in.Title, in.Company, in.Location, in.Duration,
			in.Stipend, deadline, in.Description, in.Status, now, id,
		)
		if err != nil {
			return nil, fmt.Errorf("update application: %w", err)
		}
	}

	app, err := getApplication(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return app, nil
}

// UpdateApplication applies patch to the application id owned by userID.
func (d *DB) UpdateApplication(ctx context.Context, userID, id string, patch ApplicationPatch) (*Application, error) {
	sets := []string{}
	args := []any{}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", *patch.Status, ErrInvalid)
		}
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, fmt.Errorf("unknown priority %q: %w", *patch.Priority, ErrInvalid)
		}
		sets = append(sets, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.InterviewDate.Set {
		sets = append(sets, "interview_date = ?")
		args = append(args, nullTime(patch.InterviewDate.Value))
	}
	if patch.FollowUpDate.Set {
		sets = append(sets, "follow_up_date = ?")
		args = append(args, nullTime(patch.FollowUpDate.Value))
	}
	if patch.Notes != nil {
		notes, err := json.Marshal(normalizeNotes(*patch.Notes, d.now()))
		if err != nil {
			return nil, fmt.Errorf("marshal notes: %w", err)
		}
		sets = append(sets, "notes = ?")
		args = append(args, string(notes))
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !patch.empty() {
		sets = append(sets, "updated_at = ?")
		args = append(args, d.timestamp(), id, userID)

		res, err := tx.ExecContext(ctx,
			`UPDATE applications SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?;`, args...,
		)
		if err != nil {
			return nil, fmt.Errorf("update application: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrNotFound
		}
	}

	app, err := getApplication(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return app, nil
}

// Application returns the application id owned by userID or ErrNotFound.
func (d *DB) Application(ctx context.Context, userID, id string) (*Application, error) {
	return getApplication(ctx, d.Pool, userID, id)
}

// ListApplications returns the applications of userID, most recently updated first.
func (d *DB) ListApplications(ctx context.Context, userID string) ([]*Application, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC;`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := []*Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

// AppliedSourceKeys returns the listing keys userID already tracks.
func (d *DB) AppliedSourceKeys(ctx context.Context, userID string) ([]string, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT source_key FROM applications WHERE user_id = ? AND source_key IS NOT NULL;`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list source keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan source key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// UpcomingDeadlines returns application, interview and follow-up dates of
// userID that are not in the past, soonest first.
func (d *DB) UpcomingDeadlines(ctx context.Context, userID string, now time.Time) ([]Deadline, error) {
	apps, err := d.ListApplications(ctx, userID)
	if err != nil {
		return nil, err
	}

	deadlines := []Deadline{}
	add := func(app *Application, suffix, kind, title string, date *time.Time) {
		if date == nil || date.Before(now) {
			return
		}
		deadlines = append(deadlines, Deadline{
			ID:      app.ID + "-" + suffix,
			Type:    kind,
			Title:   title,
			Company: app.Company,
			Date:    *date,
		})
	}

	for _, app := range apps {
		add(app, "apply", "application", app.Title+" application due", app.ApplicationDeadline)
		add(app, "interview", "interview", app.Title+" interview", app.InterviewDate)
		add(app, "follow", "follow_up", app.Title+" follow-up", app.FollowUpDate)
	}

	sort.SliceStable(deadlines, func(i, j int) bool {
		return deadlines[i].Date.Before(deadlines[j].Date)
	})
	if len(deadlines) > maxDeadlines {
		deadlines = deadlines[:maxDeadlines]
	}
	return deadlines, nil
}

// RecentActivity returns status changes and latest notes of userID, newest first.
func (d *DB) RecentActivity(ctx context.Context, userID string) ([]Activity, error) {
	apps, err := d.ListApplications(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(apps) > maxActivities {
		apps = apps[:maxActivities]
	}

	activities := []Activity{}
	for _, app := range apps {
		activities = append(activities, Activity{
			ID:        app.ID + "-status",
			Type:      activityType(app.Status),
			Message:   fmt.Sprintf("%s at %s • %s", app.Title, app.Company, strings.ReplaceAll(string(app.Status), "_", " ")),
			Timestamp: app.UpdatedAt,
		})

		if len(app.Notes) > 0 {
			last := app.Notes[len(app.Notes)-1]
			ts := last.Date
			if ts.IsZero() {
				ts = app.UpdatedAt
			}
			activities = append(activities, Activity{
				ID:        fmt.Sprintf("%s-note-%d", app.ID, len(app.Notes)),
				Type:      "application",
				Message:   fmt.Sprintf("Note added to %s: %s", app.Title, excerpt(last.Content, noteExcerpt)),
				Timestamp: ts,
			})
		}
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Timestamp.After(activities[j].Timestamp)
	})
	if len(activities) > maxActivities {
		activities = activities[:maxActivities]
	}
	return activities, nil
}

func activityType(s Status) string {
	switch s {
	case StatusOfferReceived:
		return "offer"
	case StatusRejected:
		return "rejection"
	case StatusInterviewScheduled:
		return "interview"
	default:
		return "application"
	}
}

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func normalizeNotes(notes []Note, now time.Time) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if n.Author == "" {
			n.Author = "You"
		}
		if n.Date.IsZero() {
			n.Date = now
		}
		n.Date = n.Date.UTC()
		out = append(out, n)
	}
	return out
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getApplication(ctx context.Context, q queryRower, userID, id string) (*Application, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ? AND user_id = ?;`, id, userID,
	)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return app, err
}

func scanApplication(s scanner) (*Application, error) {
	var app Application
	var sourceKey, deadline, interview, followUp sql.NullString
	var appliedDate, createdAt, updatedAt, notesJSON string

	err := s.Scan(
		&app.ID, &app.SourceType, &app.SourceID, &sourceKey, &app.Title, &app.Company, &app.Location,
		&app.Duration, &app.Stipend, &deadline, &app.Description, &app.Status, &app.Priority,
		&appliedDate, &interview, &followUp, &notesJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}

	app.SourceKey = sourceKey.String
	if app.ApplicationDeadline, err = scanNullTime(deadline); err != nil {
		return nil, err
	}
	if app.InterviewDate, err = scanNullTime(interview); err != nil {
		return nil, err
	}
	if app.FollowUpDate, err = scanNullTime(followUp); err != nil {
		return nil, err
	}
	if app.AppliedDate, err = parseTime(appliedDate); err != nil {
		return nil, err
	}
	if app.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if app.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	app.Notes = []Note{}
	if err := json.Unmarshal([]byte(notesJSON), &app.Notes); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	if app.Notes == nil {
		app.Notes = []Note{}
	}
	return &app, nil
}
