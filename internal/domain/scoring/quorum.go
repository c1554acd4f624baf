package scoring

import (
	"sort"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// Completion is the instant an evaluator scored every criterion of a stage.
type Completion struct {
	EvaluatorID string
	CompletedAt time.Time
}

// Quorum is the live quorum view of one team on one stage.
type Quorum struct {
	Required    int
	Completions []Completion // ascending by instant, then evaluator id
	Reached     bool
	SealedAt    time.Time // the Required-th completion instant when Reached
}

// Count is the number of complete evaluators.
func (q Quorum) Count() int { return len(q.Completions) }

// Completions groups scores by evaluator and returns those who scored every
// criterion. Scores for criteria outside the stage are ignored.
func Completions(scores []model.Score, criteria []model.Criterion) []Completion {
	if len(criteria) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		known[c.ID] = struct{}{}
	}

	type acc struct {
		covered map[string]struct{}
		latest  time.Time
	}
	byEval := make(map[string]*acc)
	for _, s := range scores {
		if _, ok := known[s.CriterionID]; !ok {
			continue
		}
		a := byEval[s.EvaluatorID]
		if a == nil {
			a = &acc{covered: make(map[string]struct{}, len(criteria))}
			byEval[s.EvaluatorID] = a
		}
		a.covered[s.CriterionID] = struct{}{}
		if s.UpdatedAt.After(a.latest) {
			a.latest = s.UpdatedAt
		}
	}

	out := make([]Completion, 0, len(byEval))
	for id, a := range byEval {
		if len(a.covered) == len(known) {
			out = append(out, Completion{EvaluatorID: id, CompletedAt: a.latest})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].EvaluatorID < out[j].EvaluatorID
	})
	return out
}

// DetectQuorum reports whether required evaluators completed the stage and,
// if so, the sealing instant. required < 1 is treated as 1.
func DetectQuorum(scores []model.Score, criteria []model.Criterion, required int) Quorum {
	if required < 1 {
		required = 1
	}
	q := Quorum{Required: required, Completions: Completions(scores, criteria)}
	if len(q.Completions) >= required {
		q.Reached = true
		q.SealedAt = q.Completions[required-1].CompletedAt
	}
	return q
}

// CompletionOf returns the completion instant of one evaluator, if complete.
func CompletionOf(scores []model.Score, criteria []model.Criterion, evaluatorID string) (time.Time, bool) {
	for _, c := range Completions(scores, criteria) {
		if c.EvaluatorID == evaluatorID {
			return c.CompletedAt, true
		}
	}
	return time.Time{}, false
}
