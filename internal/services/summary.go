package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
)

// NOTE: completion rate = completed / total * 100, rounded to 2 decimals.

type Summary struct {
	SurveyID int64 `json:"surveyId"`
	// Every attempt ever started
	TotalResponses int `json:"totalResponses"`
	// Attempts with is_completed set
	Completed int `json:"completed"`
	// Attempts still open for autosave
	InProgress int `json:"inProgress"`
	// Attempts that carry a score percentage
	Scored                 int      `json:"scored"`
	AverageScorePercentage *float64 `json:"averageScorePercentage"`
	CompletionRate         float64  `json:"completionRate"`
}

type summaryRow struct {
	Total      int64           `db:"total"`
	Completed  sql.NullInt64   `db:"completed"`
	InProgress sql.NullInt64   `db:"in_progress"`
	Scored     int64           `db:"scored"`
	Average    sql.NullFloat64 `db:"average"`
}

func (n *Summary) CalculateCompletionRate() (float64, error) {
	if n.TotalResponses == 0 {
		return 0, nil
	}

	counted := n.Completed + n.InProgress
	if n.TotalResponses != counted {
		return 0, fmt.Errorf("cannot compute completion rate when the states do not add up: %d total != %d counted", n.TotalResponses, counted)
	}

	rate := float64(n.Completed) / float64(n.TotalResponses) * 100

	return math.Round(rate*100) / 100, nil
}

func (s *surveyResponseServiceImpl) Summarize(ctx context.Context, surveyID int64) (*Summary, error) {
	row, err := s.summaries.Get(ctx, `
		SELECT COUNT(*) AS total,
			SUM(CASE WHEN is_completed THEN 1 ELSE 0 END) AS completed,
			SUM(CASE WHEN NOT is_completed THEN 1 ELSE 0 END) AS in_progress,
			COUNT(score_percentage) AS scored,
			AVG(score_percentage) AS average
		FROM survey_responses
		WHERE survey_id = ?`, surveyID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		SurveyID:       surveyID,
		TotalResponses: int(row.Total),
		Completed:      int(row.Completed.Int64),
		InProgress:     int(row.InProgress.Int64),
		Scored:         int(row.Scored),
	}
	if row.Average.Valid {
		avg := math.Round(row.Average.Float64*100) / 100
		summary.AverageScorePercentage = &avg
	}

	summary.CompletionRate, err = summary.CalculateCompletionRate()
	if err != nil {
		return nil, err
	}

	return summary, nil
}
