// Package recommend runs the recommendation pipeline: hydrate the query, try
// the external scorer, fall back to local scoring and number the results.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/ai"
	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/dates"
	"github.com/spigell/internship-recommender/internal/filtering"
	"github.com/spigell/internship-recommender/internal/logger"
	"github.com/spigell/internship-recommender/internal/mapping"
	"github.com/spigell/internship-recommender/internal/metrics"
	"github.com/spigell/internship-recommender/internal/scoring"
	"github.com/spigell/internship-recommender/internal/store"
)

const (
	DefaultTopN            = 10
	DefaultExternalTimeout = 20 * time.Second

	ResponseMessage = "Recommendations generated"
)

// ErrListingNotFound is returned for catalog ids outside the feed.
var ErrListingNotFound = errors.New("listing not found")

// ProfileSource loads the stored profile of a user. A nil profile means the
// user saved nothing.
type ProfileSource interface {
	StoredProfile(ctx context.Context, userID string) (*store.StoredProfile, error)
}

// Request is one recommendation call. Stored, when set, is used as is;
// otherwise it is loaded for UserID when the overrides leave a field empty.
type Request struct {
	UserID    string
	Stored    *store.StoredProfile
	Overrides scoring.Query
}

type Response struct {
	Message         string                   `json:"message" yaml:"message"`
	Recommendations []mapping.Recommendation `json:"recommendations" yaml:"recommendations"`
	Source          string                   `json:"source" yaml:"source"`
	Query           scoring.Query            `json:"query" yaml:"query"`
}

type Service struct {
	loader       catalog.Loader
	scorer       ai.Scorer
	useExternal  bool
	timeout      time.Duration
	profiles     ProfileSource
	applications filtering.AppliedLister
	filters      []filtering.Filter
	filterCfg    *filtering.Config
	topN         int
	clock        dates.Clock
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

type Option func(*Service)

// WithExternal sets the external scorer and whether it is consulted.
func WithExternal(scorer ai.Scorer, enabled bool, timeout time.Duration) Option {
	return func(s *Service) {
		s.scorer = scorer
		s.useExternal = enabled && scorer != nil
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithProfiles(profiles ProfileSource) Option {
	return func(s *Service) { s.profiles = profiles }
}

// WithFilters enables the catalog filters for the local pass.
func WithFilters(cfg *filtering.Config, applications filtering.AppliedLister, steps ...filtering.Filter) Option {
	return func(s *Service) {
		s.filterCfg = cfg
		s.applications = applications
		if len(steps) == 0 {
			steps = filtering.Default()
		}
		s.filters = steps
	}
}

func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

func WithClock(clock dates.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(loader catalog.Loader, opts ...Option) *Service {
	s := &Service{
		loader:  loader,
		timeout: DefaultExternalTimeout,
		topN:    DefaultTopN,
		clock:   dates.SystemClock,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend returns the ranked recommendations for req. Only a catalog read
// failure is returned as an error; external scorer problems fall back to the
// local ranking.
func (s *Service) Recommend(ctx context.Context, req Request) (*Response, error) {
	log := logger.WithRequest(s.logger, "", req.UserID)

	stored := s.storedProfile(ctx, req, log)
	q := Hydrate(req.Overrides, stored)
	now := s.clock()
	mctx := mapping.Context{Skills: scoring.NewSkillSet(q.Skills), Now: now}

	if s.useExternal {
		if recs, ok := s.external(ctx, q, mctx, log); ok {
			s.metrics.ObserveRecommendation(metrics.SourceExternal)
			return &Response{Message: ResponseMessage, Recommendations: recs, Source: metrics.SourceExternal, Query: q}, nil
		}
	}

	recs, err := s.local(ctx, q, mctx, req.UserID)
	if err != nil {
		return nil, err
	}

	log.Info("recommendations generated",
		zap.String("source", metrics.SourceLocal),
		zap.Int("results", len(recs)),
	)
	s.metrics.ObserveRecommendation(metrics.SourceLocal)
	return &Response{Message: ResponseMessage, Recommendations: recs, Source: metrics.SourceLocal, Query: q}, nil
}

// Discover maps the whole catalog in feed order without ranking.
func (s *Service) Discover(ctx context.Context) ([]mapping.Recommendation, error) {
	records, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return mapping.MapAll(records, mapping.Context{Now: s.clock()}), nil
}

// Listing returns the catalog entry with the given 1-based id.
func (s *Service) Listing(ctx context.Context, id int) (*mapping.Recommendation, error) {
	records, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	record, ok := records.At(id)
	if !ok {
		return nil, ErrListingNotFound
	}
	rec := mapping.Map(record, id, mapping.Context{Now: s.clock()})
	return &rec, nil
}

func (s *Service) storedProfile(ctx context.Context, req Request, log *zap.Logger) *store.StoredProfile {
	if req.Stored != nil {
		return req.Stored
	}
	if s.profiles == nil || req.UserID == "" || !needsHydration(req.Overrides) {
		return nil
	}

	stored, err := s.profiles.StoredProfile(ctx, req.UserID)
	if err != nil {
		log.Warn("stored profile unavailable, using request fields only", zap.Error(err))
		return nil
	}
	return stored
}

// external calls the scorer on a context detached from the caller, bounded by
// the configured timeout. ok is false when the local pass must run instead.
func (s *Service) external(ctx context.Context, q scoring.Query, mctx mapping.Context, log *zap.Logger) ([]mapping.Recommendation, bool) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	log = logger.WithScorer(log, s.scorer.Name(), modelOf(s.scorer))

	started := time.Now()
	entries, err := s.scorer.Score(callCtx, q)
	elapsed := time.Since(started)

	var recs []mapping.Recommendation
	if err == nil {
		recs = fromEntries(entries, mctx)
		if len(recs) == 0 {
			err = ai.ErrEmptyOutput
		}
	}
	if err != nil {
		reason := failureReason(err)
		s.metrics.ObserveScorer(s.scorer.Name(), reason, elapsed)
		log.Warn("external scorer failed, falling back to local scoring",
			zap.String("reason", reason),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, false
	}
	s.metrics.ObserveScorer(s.scorer.Name(), "", elapsed)

	number(recs)
	log.Info("recommendations generated",
		zap.String("source", metrics.SourceExternal),
		zap.Int("results", len(recs)),
		zap.Duration("elapsed", elapsed),
	)
	return recs, true
}

func (s *Service) local(ctx context.Context, q scoring.Query, mctx mapping.Context, userID string) ([]mapping.Recommendation, error) {
	records, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	s.metrics.ObserveCatalog(records.Len())

	if len(s.filters) > 0 {
		deps := filtering.Deps{
			Logger:       s.logger,
			Applications: s.applications,
			UserID:       userID,
			Now:          mctx.Now,
		}
		records, err = filtering.Run(ctx, s.filterCfg, deps, s.filters, records)
		if err != nil {
			return nil, fmt.Errorf("filter catalog: %w", err)
		}
	}

	top := scoring.Top(scoring.Rank(records, q, mctx.Now), s.topN)

	recs := make([]mapping.Recommendation, 0, len(top))
	if len(top) == 0 {
		return recs, nil
	}

	best := top[0].Score
	for i, candidate := range top {
		rec := mapping.MapCandidate(candidate, i+1, mctx)
		if candidate.Record.Similarity == nil {
			rec.MatchPercentage = mapping.Blend(rec.MatchPercentage, mapping.Scale(candidate.Score, best))
		}
		recs = append(recs, rec)
	}

	number(recs)
	return recs, nil
}

// fromEntries resolves external output. Normalized entries pass through and
// raw records are mapped at their position with the caller's skill context,
// so a raw record without similarity gets the skill heuristic percentage
// rather than the flat 75.
func fromEntries(entries []ai.Entry, mctx mapping.Context) []mapping.Recommendation {
	recs := make([]mapping.Recommendation, 0, len(entries))
	for i, entry := range entries {
		switch {
		case entry.Normalized != nil:
			recs = append(recs, *entry.Normalized)
		case entry.Raw != nil:
			recs = append(recs, mapping.Map(entry.Raw, i+1, mctx))
		}
	}
	return recs
}

// number assigns 1-based ids in final order.
func number(recs []mapping.Recommendation) {
	for i := range recs {
		recs[i].ID = i + 1
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ai.ErrEmptyOutput):
		return "empty"
	default:
		return "error"
	}
}

func modelOf(scorer ai.Scorer) string {
	if m, ok := scorer.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}
