package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/dates"
	"github.com/spigell/internship-recommender/internal/mapping"
	"github.com/spigell/internship-recommender/internal/metrics"
	"github.com/spigell/internship-recommender/internal/recommend"
	"github.com/spigell/internship-recommender/internal/store"
)

// Recommender is the recommendation pipeline behind the internship routes.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
	Discover(ctx context.Context) ([]mapping.Recommendation, error)
	Listing(ctx context.Context, id int) (*mapping.Recommendation, error)
}

// Store persists profiles, skills and tracked applications.
type Store interface {
	Profile(ctx context.Context, userID string) (*store.Profile, error)
	SaveProfile(ctx context.Context, userID string, p store.Profile) (*store.Profile, error)
	Skills(ctx context.Context, userID string) (*store.Skills, error)
	SaveSkills(ctx context.Context, userID string, s store.Skills) (*store.Skills, error)

	ListApplications(ctx context.Context, userID string) ([]*store.Application, error)
	UpsertApplication(ctx context.Context, userID string, in store.ApplicationInput) (*store.Application, error)
	UpdateApplication(ctx context.Context, userID, id string, patch store.ApplicationPatch) (*store.Application, error)
	UpcomingDeadlines(ctx context.Context, userID string, now time.Time) ([]store.Deadline, error)
	RecentActivity(ctx context.Context, userID string) ([]store.Activity, error)
}

type Deps struct {
	Recommender Recommender
	Store       Store
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Clock       dates.Clock
}
