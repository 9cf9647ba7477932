package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulexconde/surveydesk/internal/pkg/logger"
	"github.com/paulexconde/surveydesk/pkg/client"
)

var (
	respondAPI      string
	respondUserID   int64
	respondComplete bool
)

var respondCmd = &cobra.Command{
	Use:   "respond <surveyId>",
	Short: "Answer a survey from stdin, autosaving while answers come in",
	Long: `Reads one "question=value" answer per line. Values that parse as JSON keep
their type, anything else is a string. Answers are saved after every pause of
autosave.debounce and once more at the end of input. An open attempt is resumed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		surveyID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || surveyID <= 0 {
			return fmt.Errorf("invalid survey id %q", args[0])
		}

		score, err := respond(cmd.Context(), client.New(respondAPI), cmd.InOrStdin(), respondOptions{
			SurveyID: surveyID,
			UserID:   respondUserID,
			Debounce: cfg.Autosave.Debounce,
			Complete: respondComplete,
		}, log)
		if err != nil {
			return err
		}
		if score != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Score: %d/%d (%.2f%%)\n", score.Score, score.TotalQuestions, score.ScorePercentage)
		}
		return nil
	},
}

func init() {
	respondCmd.Flags().StringVar(&respondAPI, "api", client.DefaultBaseURL, "base URL of the survey API")
	respondCmd.Flags().Int64Var(&respondUserID, "user", 0, "id of the responding user")
	respondCmd.Flags().BoolVar(&respondComplete, "complete", false, "grade and complete the attempt at the end of input")
	_ = respondCmd.MarkFlagRequired("user")
}

type respondOptions struct {
	SurveyID int64
	UserID   int64
	Debounce time.Duration
	Complete bool
}

// respond feeds answers read from in to an Autosaver. With Complete set the
// final answers are graded and saved as a completed attempt, and the score is
// returned.
func respond(ctx context.Context, c *client.Client, in io.Reader, opts respondOptions, log *logger.Logger) (*client.Score, error) {
	answers := map[string]any{}

	latest, err := c.GetResponse(ctx, opts.SurveyID, opts.UserID)
	if err != nil {
		return nil, err
	}
	if latest != nil && !latest.IsCompleted && len(latest.ResponseData) > 0 {
		if err := json.Unmarshal(latest.ResponseData, &answers); err != nil {
			return nil, fmt.Errorf("resume response %d: %w", latest.ID, err)
		}
		log.Info("Resuming open attempt", "responseId", latest.ID, "answers", len(answers))
	}

	saver := client.NewAutosaver(c, opts.SurveyID, opts.UserID, opts.Debounce, func(err error) {
		log.Warn("Autosave failed", "surveyId", opts.SurveyID, "error", err)
	})
	defer saver.Stop()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, value, err := parseAnswer(line)
		if err != nil {
			return nil, err
		}
		answers[name] = value
		saver.Change(maps.Clone(answers))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	// Flush waits for a save in flight, so nothing open lands after the completion.
	if err := saver.Flush(ctx); err != nil {
		return nil, err
	}
	saver.Stop()

	if !opts.Complete {
		return nil, nil
	}

	score, err := c.Grade(ctx, opts.SurveyID, answers)
	if err != nil {
		return nil, err
	}

	result, err := c.SaveResponse(ctx, client.ResponseInput{
		SurveyID:        opts.SurveyID,
		UserID:          opts.UserID,
		ResponseData:    answers,
		IsCompleted:     true,
		Score:           &score.Score,
		TotalQuestions:  &score.TotalQuestions,
		ScorePercentage: &score.ScorePercentage,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Attempt completed", "responseId", result.ResponseID, "score", score.Score, "total", score.TotalQuestions)

	return score, nil
}

func parseAnswer(line string) (string, any, error) {
	name, raw, ok := strings.Cut(line, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("answer %q is not in question=value form", line)
	}

	raw = strings.TrimSpace(raw)
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return name, raw, nil
	}
	return name, value, nil
}
