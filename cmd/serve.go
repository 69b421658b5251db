package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/internship-recommender/internal/httpapi"
	"github.com/spigell/internship-recommender/internal/logger"
	"github.com/spigell/internship-recommender/internal/metrics"
	"github.com/spigell/internship-recommender/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the recommendation HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default is :5000)")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), zap.String("app", app))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the internship-recommender api", zap.String("version", version))

	db, err := store.Open(ctx, config.Store.Path)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err), zap.String("path", config.Store.Path))
	}
	defer db.Close()

	m := metrics.New()
	svc := newService(ctx, config, db, m, logger)

	srv := &http.Server{
		Addr: config.Server.Listen,
		Handler: httpapi.NewHandler(httpapi.Deps{
			Recommender: svc,
			Store:       db,
			Metrics:     m,
			Logger:      logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("catalog", config.Catalog.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down", zap.Duration("timeout", config.Server.ShutdownTimeout))
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
}
