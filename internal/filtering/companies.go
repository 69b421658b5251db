package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/normalize"
)

type companiesFilter struct {
	toggle
}

// NewCompanies creates a filter that removes listings of the companies configured
// in the config. Company names are compared case-insensitively.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate(*Config) error { return nil }

// excludedCompanies returns the configured company names without blanks.
func excludedCompanies(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	var companies []string
	for _, company := range cfg.ExcludeCompanies {
		if company = strings.TrimSpace(company); company != "" {
			companies = append(companies, company)
		}
	}
	return companies
}

func (f *companiesFilter) Apply(_ context.Context, cfg *Config, deps Deps, records *catalog.Records) (*catalog.Records, Step, error) {
	initial := records.Len()
	companies := excludedCompanies(cfg)
	if len(companies) == 0 || initial == 0 {
		return records, unchanged(records), nil
	}

	blocked := make(map[string]struct{}, len(companies))
	for _, company := range companies {
		blocked[normalize.Lower(company)] = struct{}{}
	}

	excluded := records.Retain(func(r *catalog.Record) bool {
		_, ok := blocked[normalize.Lower(r.Company)]
		return !ok
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding listings by company",
			zap.Strings("excluded_companies", companies),
			zap.Strings("excluded_listings", catalog.Titles(excluded)),
			zap.Int("listings_left", records.Len()),
		)
	}

	return records, Step{Initial: initial, Dropped: len(excluded), Left: records.Len()}, nil
}

func (f *companiesFilter) Status(cfg *Config) Status {
	details := map[string]string{}
	if companies := excludedCompanies(cfg); len(companies) > 0 {
		details["companies"] = strings.Join(companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
