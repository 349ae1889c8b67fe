package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/console"
	"github.com/spigell/candidate-console/internal/presence"
	"github.com/spigell/candidate-console/internal/store"
	"github.com/spigell/candidate-console/internal/view"
	"github.com/spigell/candidate-console/internal/workflow"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the interactive candidate screen",
	Run: func(_ *cobra.Command, _ []string) {
		runConsole()
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := bootstrap(consoleLogPath())
	defer e.logger.Sync()

	st := store.New(e.metrics)
	sessions := store.NewSessionIndex()

	wf := workflow.New(
		workflow.Config{QuestionsTotal: e.config.Questions.Total},
		workflow.Deps{API: e.client, Store: st, Sessions: sessions, Logger: e.logger, Metrics: e.metrics},
	)

	tracker := presence.New(
		presence.Config{
			Token:             e.client.Token(),
			PollInterval:      e.config.Presence.PollInterval,
			HeartbeatInterval: e.config.Presence.HeartbeatInterval,
		},
		presence.Deps{API: e.client, Store: st, Logger: e.logger, Metrics: e.metrics},
	)
	if err := tracker.Start(ctx); err != nil {
		e.logger.Fatal("starting presence tracker", zap.Error(err))
	}
	defer tracker.Stop()

	e.serveMetrics(ctx, e.config.Metrics.Addr)

	err := console.Run(ctx, console.Config{PageSize: e.config.View.PageSize}, console.Deps{
		Backend:  e.client,
		Store:    st,
		Sessions: sessions,
		Engine:   view.NewEngine(e.logger.Named("view")),
		Workflow: wf,
		Activity: tracker,
		Logger:   e.logger,
	})
	if err != nil {
		e.logger.Error("console exited", zap.Error(err))
	}
}

// consoleLogPath keeps log lines off the terminal the screen draws on.
func consoleLogPath() string {
	if path := viper.GetString("log-file"); path != "" {
		return path
	}
	return "stderr"
}
