package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/internship-recommender/internal/logger"
	"github.com/spigell/internship-recommender/internal/mapping"
	"github.com/spigell/internship-recommender/internal/metrics"
	"github.com/spigell/internship-recommender/internal/recommend"
	"github.com/spigell/internship-recommender/internal/scoring"
	"github.com/spigell/internship-recommender/internal/store"
)

const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"

	PromptDone = "Done"

	defaultCLIUser = "local"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank the catalog once and print the recommendations",
	Run: func(cmd *cobra.Command, _ []string) {
		runRecommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("sector", "s", "", "preferred sector")
	recommendCmd.Flags().StringP("location", "l", "", "preferred city")
	recommendCmd.Flags().StringSliceP("skills", "k", nil, "skills, comma separated")
	recommendCmd.Flags().StringP("user", "u", defaultCLIUser, "user whose stored profile fills missing preferences")
	recommendCmd.Flags().StringP("output", "o", OutputTable, "output format: table, json or yaml")
	recommendCmd.Flags().IntP("top", "n", 0, "number of results (default is recommend.top-n)")
	recommendCmd.Flags().BoolP("local-only", "L", false, "skip the external scorer")
	recommendCmd.Flags().BoolP("track", "t", false, "pick results to track as applications")

	viper.BindPFlag("recommend.top-n", recommendCmd.Flags().Lookup("top"))
}

func runRecommend(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), zap.String("app", app))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if local, _ := cmd.Flags().GetBool("local-only"); local {
		config.External.Enabled = false
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	db, err := store.Open(ctx, config.Store.Path)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err), zap.String("path", config.Store.Path))
	}
	defer db.Close()

	svc := newService(ctx, config, db, metrics.New(), logger)

	sector, _ := cmd.Flags().GetString("sector")
	location, _ := cmd.Flags().GetString("location")
	skills, _ := cmd.Flags().GetStringSlice("skills")
	user, _ := cmd.Flags().GetString("user")

	resp, err := svc.Recommend(ctx, recommend.Request{
		UserID:    user,
		Overrides: scoring.Query{Sector: sector, Location: location, Skills: skills},
	})
	if err != nil {
		logger.Fatal("getting recommendations", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if err := printResponse(cmd.OutOrStdout(), output, resp); err != nil {
		logger.Fatal("printing recommendations", zap.Error(err))
	}

	if track, _ := cmd.Flags().GetBool("track"); !track || len(resp.Recommendations) == 0 {
		return
	}

	if err := trackLoop(ctx, db, user, resp.Recommendations, logger); err != nil {
		logger.Fatal("tracking applications", zap.Error(err))
	}
}

func printResponse(w io.Writer, format string, resp *recommend.Response) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", OutputTable:
		return printTable(w, resp)
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func printTable(w io.Writer, resp *recommend.Response) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "# source: %s\n", resp.Source)
	fmt.Fprintln(tw, "ID\tMATCH\tTITLE\tCOMPANY\tLOCATION\tSTIPEND\tDEADLINE")
	for _, rec := range resp.Recommendations {
		deadline := rec.ApplicationDeadline
		if len(deadline) >= len(time.DateOnly) {
			deadline = deadline[:len(time.DateOnly)]
		}
		fmt.Fprintf(tw, "%d\t%d%%\t%s\t%s\t%s\t%d\t%s\n",
			rec.ID, rec.MatchPercentage, rec.Title, rec.Company, rec.Location, rec.Stipend, deadline,
		)
	}
	return tw.Flush()
}

// trackLoop lets the user pick recommendations to save as applications until
// Done is chosen.
func trackLoop(ctx context.Context, db *store.DB, user string, recs []mapping.Recommendation, logger *zap.Logger) error {
	for {
		items := make([]string, 0, len(recs)+1)
		for _, rec := range recs {
			items = append(items, recommendationLabel(rec))
		}

		selectPrompt := promptui.Select{
			Label: "Choose an internship to track and press ENTER",
			Items: append(items, PromptDone),
			Size:  10,
		}

		idx, selected, err := selectPrompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if selected == PromptDone {
			return nil
		}

		app, err := db.UpsertApplication(ctx, user, applicationInput(recs[idx]))
		if err != nil {
			return err
		}

		logger.Info("tracking application",
			zap.String("application_id", app.ID),
			zap.String("title", app.Title),
			zap.String("company", app.Company),
		)
	}
}

func recommendationLabel(rec mapping.Recommendation) string {
	return fmt.Sprintf("%d %s / %s / %s (%d%%)", rec.ID, rec.Title, rec.Company, rec.Location, rec.MatchPercentage)
}

func applicationInput(rec mapping.Recommendation) store.ApplicationInput {
	in := store.ApplicationInput{
		Title:       rec.Title,
		Company:     rec.Company,
		Location:    rec.Location,
		Duration:    rec.Duration,
		Stipend:     rec.Stipend,
		Description: rec.Description,
		SourceType:  store.SourceRecommendation,
		SourceID:    fmt.Sprint(rec.ID),
	}
	if deadline, err := time.Parse(mapping.ISOLayout, rec.ApplicationDeadline); err == nil {
		in.ApplicationDeadline = &deadline
	}
	return in
}
