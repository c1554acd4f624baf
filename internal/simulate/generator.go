package simulate

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/seed"
	"github.com/okian/tally/pkg/logger"
)

// job is one evaluator judging one team on one stage.
type job struct {
	EvaluatorID string
	TeamID      string
	StageID     string
	BatchID     string
	Scores      []service.CriterionScore
}

// randomScore returns a value in [minScore, maxScore] using crypto/rand.
func randomScore() int {
	n, err := rand.Int(rand.Reader, big.NewInt(maxScore-minScore+1))
	if err != nil {
		return minScore
	}
	return minScore + int(n.Int64())
}

// findEvent returns the event with id, or the first one when id is empty.
func findEvent(f seed.File, id string) (seed.Event, bool) {
	for _, e := range f.Events {
		if id == "" || e.ID == id {
			return e, true
		}
	}
	return seed.Event{}, false
}

// generateJobs plans a full round: every evaluator scores every team on every stage.
func generateJobs(ctx context.Context, ev seed.Event) []job { //nolint:gocritic // hugeParam: read once per run
	jobs := make([]job, 0, len(ev.Stages)*len(ev.Teams)*len(ev.Evaluators))
	for _, st := range ev.Stages {
		for _, team := range ev.Teams {
			for _, evaluator := range ev.Evaluators {
				scores := make([]service.CriterionScore, 0, len(st.Criteria))
				for _, c := range st.Criteria {
					scores = append(scores, service.CriterionScore{CriterionID: c.ID, Value: randomScore()})
				}
				jobs = append(jobs, job{
					EvaluatorID: evaluator,
					TeamID:      team.ID,
					StageID:     st.ID,
					BatchID:     uuid.NewString(),
					Scores:      scores,
				})
			}
		}
	}
	logger.Get().Info(ctx, "planned judging round",
		logger.String("event", ev.ID),
		logger.Int("stages", len(ev.Stages)),
		logger.Int("teams", len(ev.Teams)),
		logger.Int("evaluators", len(ev.Evaluators)),
		logger.Int("jobs", len(jobs)))
	return jobs
}
