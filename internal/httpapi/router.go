package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/dates"
)

// NewMux registers every API route.
func NewMux(d Deps) *http.ServeMux {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = dates.SystemClock
	}

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(d.Metrics, pattern, h))
	}

	handle("/api/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{}.Health,
	}))

	// Internships
	ih := InternshipsHandler{Recommender: d.Recommender, Logger: d.Logger}
	handle("/api/recommendations", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ih.Recommend,
	}))
	handle("/api/internships/discover", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ih.Discover,
	}))
	handle("/api/internships/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ih.GetByPath, // expects /api/internships/{id}
	}))

	// Profile and skills
	ph := ProfileHandler{Store: d.Store, Logger: d.Logger}
	handle("/api/profile", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  requireUser(ph.Get),
		http.MethodPost: requireUser(ph.Save),
		http.MethodPut:  requireUser(ph.Save),
	}))
	handle("/api/skills", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  requireUser(ph.GetSkills),
		http.MethodPost: requireUser(ph.SaveSkills),
	}))

	// Applications
	ah := ApplicationsHandler{Store: d.Store, Clock: d.Clock, Logger: d.Logger}
	handle("/api/applications", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: requireUser(ah.List),
	}))
	handle("/api/applications/upsert", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: requireUser(ah.Upsert),
	}))
	handle("/api/applications/upcoming-deadlines", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: requireUser(ah.UpcomingDeadlines),
	}))
	handle("/api/applications/recent-activity", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: requireUser(ah.RecentActivity),
	}))
	handle("/api/applications/", methodMux(map[string]http.HandlerFunc{
		http.MethodPatch: requireUser(ah.UpdateByPath), // expects /api/applications/{id}
	}))

	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}

	return mux
}

// NewHandler wraps the API routes with the standard middleware chain.
func NewHandler(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return Chain(NewMux(d), RequestID, Recover(log), Identity, AccessLog(log))
}
