package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulexconde/surveydesk/internal/pkg/logger"
	"github.com/paulexconde/surveydesk/internal/pkg/workerpool"
	"github.com/paulexconde/surveydesk/pkg/client"
)

var (
	importAPI     string
	importUserIDs []int64
	importWorkers int
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Create a survey for every *.json document in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(importAPI)
		n, err := importSurveys(cmd.Context(), c, args[0], importUserIDs, importWorkers, log)
		if err != nil {
			return err
		}
		log.Info("Import finished", "surveys", n)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importAPI, "api", client.DefaultBaseURL, "base URL of the survey API")
	importCmd.Flags().Int64SliceVar(&importUserIDs, "users", nil, "user ids every imported survey is assigned to")
	importCmd.Flags().IntVar(&importWorkers, "workers", 4, "concurrent uploads")
}

type surveyFile struct {
	path  string
	title string
	doc   map[string]any
}

// readSurveyFiles loads every *.json file of dir. The title comes from the
// document's "title" key and falls back to the file name.
func readSurveyFiles(dir string) ([]surveyFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	files := make([]surveyFile, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		title, _ := doc["title"].(string)
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		files = append(files, surveyFile{path: path, title: title, doc: doc})
	}
	return files, nil
}

func importSurveys(ctx context.Context, c *client.Client, dir string, userIDs []int64, workers int, log *logger.Logger) (int, error) {
	files, err := readSurveyFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no *.json files in %s", dir)
	}

	pool := workerpool.NewWorkerPool(ctx, workers, len(files), log)
	for _, f := range files {
		job := workerpool.WithRetryIf(3, 500*time.Millisecond, retryableCreate, func(ctx context.Context) error {
			id, err := c.CreateSurvey(ctx, client.SurveyInput{Title: f.title, Content: f.doc, UserIDs: userIDs})
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(f.path), err)
			}
			log.Info("Imported survey", "file", filepath.Base(f.path), "surveyId", id)
			return nil
		})
		if err := pool.Submit(ctx, job); err != nil {
			return 0, err
		}
	}

	if err := pool.Shutdown(context.Background()); err != nil {
		return 0, err
	}
	return len(files), nil
}

// retryableCreate reports whether a failed create certainly left nothing
// behind. Creates are not idempotent, so a timeout or a rejected request is
// final.
func retryableCreate(err error) bool {
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError &&
			statusErr.StatusCode != http.StatusGatewayTimeout
	}

	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
