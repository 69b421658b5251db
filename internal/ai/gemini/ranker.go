package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/ai"
	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/scoring"
	"github.com/spigell/internship-recommender/internal/utils"
)

const (
	Provider = "gemini"

	// DefaultTopK mirrors the neighbour count of the bundled script recommender.
	DefaultTopK         = 5
	defaultMaxLogLength = 200
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

// Ranker asks Gemini to pick the best catalog listings for a query.
type Ranker struct {
	generator contentGenerator
	loader    catalog.Loader
	topK      int
	logger    *zap.Logger
	maxLogLen int
}

func NewRanker(generator contentGenerator, loader catalog.Loader, topK int, logger *zap.Logger) *Ranker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ranker{
		generator: generator,
		loader:    loader,
		topK:      topK,
		logger:    logger,
		maxLogLen: defaultMaxLogLength,
	}
}

func (r *Ranker) Name() string { return Provider }

func (r *Ranker) Model() string { return r.generator.Model() }

// Score returns the picked listings as raw records carrying the model's
// similarity.
func (r *Ranker) Score(ctx context.Context, q scoring.Query) ([]ai.Entry, error) {
	records, err := r.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if records.Len() == 0 {
		return nil, ai.ErrEmptyOutput
	}

	message, err := buildMessage(q, records)
	if err != nil {
		return nil, err
	}
	system := buildSystemPrompt(r.topK)

	r.logger.Debug("gemini generate content request",
		zap.Int("catalog_size", records.Len()),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	picks, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	entries := selectEntries(picks, records, r.topK)
	if len(entries) == 0 {
		return nil, ai.ErrEmptyOutput
	}
	return entries, nil
}

type pick struct {
	Index      int
	Similarity float64
}

type catalogItem struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Type    string `json:"type,omitempty"`
	Cities  string `json:"cities,omitempty"`
	Company string `json:"company,omitempty"`
	Stipend int    `json:"stipend,omitempty"`
}

func buildSystemPrompt(topK int) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Rank the catalog for the candidate. Respond with a JSON array of at most {{TOP_K}} objects {\"index\", \"similarity\"}."
	}
	return strings.ReplaceAll(template, "{{TOP_K}}", strconv.Itoa(topK))
}

func buildMessage(q scoring.Query, records *catalog.Records) (string, error) {
	candidate := map[string]any{
		"sector":   q.Sector,
		"location": q.Location,
		"skills":   q.Skills,
	}
	candidateJSON, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate payload: %w", err)
	}

	items := make([]catalogItem, 0, records.Len())
	for i, record := range records.Items {
		items = append(items, catalogItem{
			Index:   i + 1,
			Title:   record.Title,
			Type:    record.Type,
			Cities:  record.Cities,
			Company: record.Company,
			Stipend: record.StipendAmount(),
		})
	}
	catalogJSON, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal catalog payload: %w", err)
	}

	return fmt.Sprintf("Candidate:\n%s\n\nCatalog:\n%s\n\nJSON Response:", candidateJSON, catalogJSON), nil
}

func parseResponse(raw string) ([]pick, error) {
	cleaned := extractJSON(raw)

	var data []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	picks := make([]pick, 0, len(data))
	for _, item := range data {
		index := coerceFloat(item["index"])
		if math.IsNaN(index) {
			continue
		}
		similarity := coerceFloat(item["similarity"])
		if math.IsNaN(similarity) {
			similarity = 0
		}
		picks = append(picks, pick{
			Index:      int(index),
			Similarity: math.Max(0, math.Min(1, similarity)),
		})
	}
	return picks, nil
}

// selectEntries drops unknown and repeated indexes, orders by similarity and
// keeps at most topK.
func selectEntries(picks []pick, records *catalog.Records, topK int) []ai.Entry {
	seen := make(map[int]struct{}, len(picks))
	valid := make([]pick, 0, len(picks))
	for _, p := range picks {
		if _, ok := records.At(p.Index); !ok {
			continue
		}
		if _, dup := seen[p.Index]; dup {
			continue
		}
		seen[p.Index] = struct{}{}
		valid = append(valid, p)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Similarity > valid[j].Similarity
	})
	if len(valid) > topK {
		valid = valid[:topK]
	}

	entries := make([]ai.Entry, 0, len(valid))
	for _, p := range valid {
		original, _ := records.At(p.Index)
		record := *original
		similarity := p.Similarity
		record.Similarity = &similarity
		entries = append(entries, ai.Entry{Raw: &record})
	}
	return entries
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
