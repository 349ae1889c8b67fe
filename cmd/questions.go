package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/store"
	"github.com/spigell/candidate-console/internal/workflow"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Generate interview questions for a candidate",
	Run: func(cmd *cobra.Command, _ []string) {
		runQuestions(cmd)
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)

	questionsCmd.Flags().IntP("candidate", "c", 0, "candidate id")
	questionsCmd.Flags().Int("job", 0, "job id; asked interactively when unset")
	questionsCmd.Flags().BoolP("force", "f", false, "generate even if the candidate already has a question session")
	questionsCmd.MarkFlagRequired("candidate")
}

func runQuestions(cmd *cobra.Command) {
	ctx := context.Background()
	e := bootstrap()
	defer e.logger.Sync()

	candidateID, _ := cmd.Flags().GetInt("candidate")
	jobID, _ := cmd.Flags().GetInt("job")
	force, _ := cmd.Flags().GetBool("force")

	sessions := store.NewSessionIndex()
	sessions.Merge(e.client.QuestionSessions(ctx, []int{candidateID}))

	wf := workflow.New(
		workflow.Config{QuestionsTotal: e.config.Questions.Total},
		workflow.Deps{API: e.client, Store: store.New(e.metrics), Sessions: sessions, Logger: e.logger, Metrics: e.metrics},
	)

	if wf.Route(candidateID) == workflow.RouteReview && !force {
		session, _ := sessions.Lookup(candidateID)
		e.logger.Info("candidate already has questions, review them instead",
			zap.Int("candidate_id", candidateID),
			zap.String("question_session", session),
			zap.String("hint", "use --force to generate a new set"),
		)
		return
	}

	if err := wf.LoadJobs(ctx); err != nil {
		e.logger.Fatal("getting open jobs", zap.Error(err))
	}

	if _, err := wf.Begin(candidateID, workflow.KindQuestions); err != nil {
		e.logger.Fatal("starting questions", zap.Error(err))
	}

	jobID, err := chooseJob(wf.Jobs(), jobID)
	if err != nil {
		e.logger.Fatal("choosing a job", zap.Error(err))
	}

	session, err := wf.SelectJob(jobID)
	if err != nil {
		e.logger.Fatal("selecting a job", zap.Error(err))
	}

	s, err := wf.Generate(ctx, session.Token)
	if err != nil {
		e.logger.Fatal("generating questions", zap.Error(err))
	}

	e.logger.Info("questions are ready",
		zap.Int("candidate_id", candidateID),
		zap.Int("job_id", jobID),
		zap.String("question_session", s.QuestionSessionID),
	)
}
