package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"gorm.io/datatypes"

	"github.com/paulexconde/surveydesk/pkg/fault"
)

// Score is what a graded attempt stores in its score columns.
type Score struct {
	Score           int     `json:"score"`
	TotalQuestions  int     `json:"totalQuestions"`
	ScorePercentage float64 `json:"scorePercentage"`
}

// The few parts of a survey document that grading reads. Panels nest elements.
type element struct {
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	VisibleIf     string          `json:"visibleIf"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Elements      []element       `json:"elements"`
}

type page struct {
	VisibleIf string    `json:"visibleIf"`
	Elements  []element `json:"elements"`
}

type document struct {
	Pages    []page    `json:"pages"`
	Elements []element `json:"elements"`
}

// Grade counts the questions that have a correct answer and are visible for
// the given answers, and how many of them were answered correctly.
func Grade(content, answers datatypes.JSON) (*Score, error) {
	var doc document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fault.NewClientError("survey content is not a valid survey document", err)
	}

	values := map[string]any{}
	if len(bytes.TrimSpace(answers)) > 0 {
		if err := json.Unmarshal(answers, &values); err != nil {
			return nil, fault.NewFieldError("responseData", "must be a JSON object", err)
		}
	}

	g := grader{answers: values}

	for _, p := range doc.Pages {
		visible, err := g.visible(p.VisibleIf)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		if err := g.walk(p.Elements); err != nil {
			return nil, err
		}
	}
	if err := g.walk(doc.Elements); err != nil {
		return nil, err
	}

	score := &Score{Score: g.correct, TotalQuestions: g.total}
	if g.total > 0 {
		score.ScorePercentage = math.Round(float64(g.correct)/float64(g.total)*10000) / 100
	}

	return score, nil
}

type grader struct {
	answers map[string]any
	total   int
	correct int
}

func (g *grader) walk(elements []element) error {
	for _, el := range elements {
		visible, err := g.visible(el.VisibleIf)
		if err != nil {
			return err
		}
		if !visible {
			continue
		}

		if len(el.Elements) > 0 {
			if err := g.walk(el.Elements); err != nil {
				return err
			}
		}

		if !hasValue(el.CorrectAnswer) {
			continue
		}

		g.total++

		var expected any
		if err := json.Unmarshal(el.CorrectAnswer, &expected); err != nil {
			return fault.NewClientError("invalid correctAnswer for "+el.Name, err)
		}
		if sameAnswer(g.answers[el.Name], expected) {
			g.correct++
		}
	}
	return nil
}

// visible reports whether condition holds for the current answers. A condition
// that cannot be evaluated, such as `{age} > 18` before age is answered, is false.
func (g *grader) visible(condition string) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return true, nil
	}

	ok, err := evaluateExpression(translateCondition(condition), map[string]any{"answers": g.answers})
	var runErr *evaluationError
	if errors.As(err, &runErr) {
		return false, nil
	}
	if err != nil {
		return false, fault.NewClientError("invalid visibleIf condition "+strconv.Quote(condition), err)
	}
	return ok, nil
}

func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// translateCondition turns `{q1} = 'yes'` into `answers["q1"] == 'yes'`.
// Quoted literals are copied as they are.
func translateCondition(condition string) string {
	var (
		out   strings.Builder
		quote rune
	)
	runes := []rune(condition)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == '\\' && i+1 < len(runes) {
				out.WriteRune(r)
				i++
				r = runes[i]
			} else if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '{':
			if end := closingBrace(runes, i); end > 0 {
				name := strings.TrimSpace(string(runes[i+1 : end]))
				out.WriteString("answers[" + strconv.Quote(name) + "]")
				i = end
				continue
			}
		case r == '=':
			prevOp := i > 0 && strings.ContainsRune("=!<>", runes[i-1])
			nextEq := i+1 < len(runes) && runes[i+1] == '='
			if !prevOp && !nextEq {
				out.WriteString("==")
				continue
			}
		}
		out.WriteRune(r)
	}

	return out.String()
}

// closingBrace returns the index of the '}' matching the '{' at start, or -1.
func closingBrace(runes []rune, start int) int {
	for j := start + 1; j < len(runes); j++ {
		switch runes[j] {
		case '}':
			if j == start+1 {
				return -1
			}
			return j
		case '{':
			return -1
		}
	}
	return -1
}

// evaluationError marks a condition that compiled but failed on the given input.
type evaluationError struct {
	err error
}

func (e *evaluationError) Error() string { return e.err.Error() }
func (e *evaluationError) Unwrap() error { return e.err }

func evaluateExpression(expression string, input map[string]any) (bool, error) {
	program, err := expr.Compile(expression, expr.Env(input))
	if err != nil {
		return false, err
	}

	output, err := expr.Run(program, input)
	if err != nil {
		return false, &evaluationError{err: err}
	}

	result, ok := output.(bool)
	if !ok {
		return false, errors.New("expression did not return a boolean")
	}

	return result, nil
}

// sameAnswer compares decoded JSON values. Multi-select answers match in any order.
func sameAnswer(got, want any) bool {
	gotList, gotIsList := got.([]any)
	wantList, wantIsList := want.([]any)
	if gotIsList && wantIsList {
		if len(gotList) != len(wantList) {
			return false
		}
		return equalStrings(canonicalAll(gotList), canonicalAll(wantList))
	}

	return canonical(got) == canonical(want)
}

func canonicalAll(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, canonical(v))
	}
	sort.Strings(out)
	return out
}

func canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func equalStrings(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
