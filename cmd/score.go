package cmd

import (
	"context"
	"errors"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/store"
	"github.com/spigell/candidate-console/internal/transcript"
	"github.com/spigell/candidate-console/internal/utils"
	"github.com/spigell/candidate-console/internal/workflow"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Upload a transcript for a candidate and generate the score",
	Run: func(cmd *cobra.Command, _ []string) {
		runScore(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().IntP("candidate", "c", 0, "candidate id")
	scoreCmd.Flags().Int("job", 0, "job id; asked interactively when unset")
	scoreCmd.Flags().StringP("transcript", "t", "", "transcript text")
	scoreCmd.Flags().String("transcript-file", "", "transcript file (≤ 5 MB, txt, md, json or csv)")
	scoreCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before submitting")
	scoreCmd.MarkFlagRequired("candidate")
	scoreCmd.MarkFlagsMutuallyExclusive("transcript", "transcript-file")
}

func runScore(cmd *cobra.Command) {
	ctx := context.Background()
	e := bootstrap()
	defer e.logger.Sync()

	candidateID, _ := cmd.Flags().GetInt("candidate")
	jobID, _ := cmd.Flags().GetInt("job")
	text, _ := cmd.Flags().GetString("transcript")
	file, _ := cmd.Flags().GetString("transcript-file")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	candidates, err := e.client.GetCandidates(ctx)
	if err != nil {
		e.logger.Fatal("getting candidates", zap.Error(err))
	}
	st := store.New(e.metrics)
	st.ReplaceAll(candidates)

	wf := workflow.New(
		workflow.Config{QuestionsTotal: e.config.Questions.Total},
		workflow.Deps{API: e.client, Store: st, Logger: e.logger, Metrics: e.metrics},
	)

	if err := wf.LoadJobs(ctx); err != nil {
		e.logger.Fatal("getting open jobs", zap.Error(err))
	}

	if _, err := wf.Begin(candidateID, workflow.KindTranscript); err != nil {
		e.logger.Fatal("starting transcript scoring", zap.Error(err))
	}

	jobID, err = chooseJob(wf.Jobs(), jobID)
	if err != nil {
		e.logger.Fatal("choosing a job", zap.Error(err))
	}

	if _, err := wf.SelectJob(jobID); err != nil {
		e.logger.Fatal("selecting a job", zap.Error(err))
	}

	if err := attachTranscript(wf, text, file); err != nil {
		e.logger.Fatal("reading transcript", zap.Error(err))
	}

	s, _ := wf.Current()
	e.logger.Info("ready to submit",
		zap.Int("candidate_id", candidateID),
		zap.Int("job_id", jobID),
		zap.Int("transcript_chars", len([]rune(s.Transcript))),
		zap.String("preview", utils.TruncateForLog(s.Transcript, 60)),
	)

	if !autoApprove {
		confirm := promptui.Prompt{Label: "Submit and generate the score", IsConfirm: true}
		if _, err := confirm.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				e.logger.Info("exiting", zap.String("reason", "got no from prompt"))
				return
			}
			e.logger.Fatal("exiting", zap.Error(err))
		}
	}

	s, err = wf.Submit(ctx, s.Token)
	if err != nil {
		e.logger.Fatal("generating score", zap.Error(err))
	}

	c, _ := st.Get(candidateID)
	e.logger.Info("score generated",
		zap.Int("candidate_id", candidateID),
		zap.String("candidate", c.Name),
		zap.Float64("score", s.Score.Score),
		zap.Bool("has_transcript", s.Score.HasTranscript),
	)
}

func attachTranscript(wf *workflow.Workflow, text, path string) error {
	if path == "" {
		return wf.SetTranscript(text)
	}

	f, closer, err := transcript.FromPath(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	return wf.AttachFile(f)
}
