package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/logger"
	"github.com/spigell/candidate-console/internal/metrics"
	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/secrets"
)

// env is what every command needs to talk to the backend.
type env struct {
	config  *Config
	logger  *zap.Logger
	client  *recruiting.Client
	metrics *metrics.Metrics
}

// bootstrap builds logger, config and API client. Setup errors are fatal.
func bootstrap(logPaths ...string) *env {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), logPaths...)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	l.Info("starting the candidate console", zap.String("version", version), zap.String("api_url", config.APIURL))

	token, err := secrets.Load(secrets.Source{
		Name:     "api token",
		Value:    config.Token,
		File:     config.TokenFile,
		Optional: true,
	})
	if err != nil {
		l.Fatal(
			"loading api token",
			zap.Error(err),
			zap.String("hint", "set CONSOLE_TOKEN_FILE or CONSOLE_TOKEN, or the 'token-file' key in the configuration file"),
		)
	}
	if token == "" {
		l.Warn("no api token configured, requests are sent unauthenticated and heartbeats are skipped")
	}

	client := recruiting.New(l.Named("api"), token)
	if config.APIURL != "" {
		client.APIURL = config.APIURL
	}
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	return &env{
		config:  config,
		logger:  l,
		client:  client,
		metrics: metrics.New(),
	}
}

// serveMetrics exposes the registry on addr until ctx is done. An empty addr disables it.
func (e *env) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	e.logger.Info("serving metrics", zap.String("addr", addr))
}

// chooseJob asks for a job unless id is already set.
func chooseJob(jobs []recruiting.Job, id int) (int, error) {
	if id != 0 {
		if recruiting.FindJob(jobs, id) == nil {
			return 0, fmt.Errorf("there is no open job with id %d", id)
		}
		return id, nil
	}

	if len(jobs) == 0 {
		return 0, errors.New("there are no open jobs")
	}

	items := make([]string, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, fmt.Sprintf("%d %s / %s", job.ID, job.Title, job.Department))
	}

	jobPrompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: items,
	}

	_, selected, err := jobPrompt.Run()
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(strings.Split(selected, " ")[0])
}
