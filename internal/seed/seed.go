// Package seed loads YAML event definitions and applies them to a store.
// Applying the same file twice is a no-op: existing records are kept.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// File is a seed document.
type File struct {
	Events []Event `yaml:"events" validate:"required,min=1,dive"`
}

// Event is one event with everything judged in it.
type Event struct {
	ID         string   `yaml:"id" validate:"required"`
	Name       string   `yaml:"name" validate:"required"`
	Owner      string   `yaml:"owner" validate:"required"`
	Tracks     []Track  `yaml:"tracks" validate:"dive"`
	Teams      []Team   `yaml:"teams" validate:"dive"`
	Evaluators []string `yaml:"evaluators" validate:"dive,required"`
	Stages     []Stage  `yaml:"stages" validate:"dive"`
}

// Track is a team grouping.
type Track struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

// Team is a participant. Track refers to a track id of the same event.
type Team struct {
	ID      string   `yaml:"id" validate:"required"`
	Name    string   `yaml:"name" validate:"required"`
	Track   string   `yaml:"track"`
	Members []string `yaml:"members"`
}

// Stage is a judged round. Exactly one of Deadline or DeadlineIn is set;
// DeadlineIn is relative to the apply instant.
type Stage struct {
	ID                 string        `yaml:"id" validate:"required"`
	Name               string        `yaml:"name" validate:"required"`
	Weight             float64       `yaml:"weight" validate:"gt=0"`
	Deadline           time.Time     `yaml:"deadline"`
	DeadlineIn         time.Duration `yaml:"deadline_in"`
	RequiredEvaluators int           `yaml:"required_evaluators" validate:"min=0"`
	BonusRate          float64       `yaml:"bonus_rate" validate:"min=0"`
	PenaltyRate        float64       `yaml:"penalty_rate" validate:"min=0"`
	Criteria           []Criterion   `yaml:"criteria" validate:"required,min=1,dive"`
}

// Criterion is a weighted sub-dimension of a stage.
type Criterion struct {
	ID     string  `yaml:"id" validate:"required"`
	Name   string  `yaml:"name" validate:"required"`
	Weight float64 `yaml:"weight" validate:"gt=0"`
}

// Store is the subset of the repository a seed writes to.
type Store interface {
	CreateEvent(ctx context.Context, e model.Event) error
	CreateTrack(ctx context.Context, t model.Track) error
	CreateTeam(ctx context.Context, t model.Team) (model.Team, error)
	AddEvaluator(ctx context.Context, a model.EvaluatorAssignment) error
	CreateStage(ctx context.Context, s model.Stage) error
	CreateCriterion(ctx context.Context, c model.Criterion) error
}

// Result counts what an Apply call wrote.
type Result struct {
	Created  int
	Existing int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and parses a seed file.
func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrReadSeed, err)
	}
	return Parse(b)
}

// Parse decodes and validates a seed document.
func Parse(b []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks field rules and cross references.
func (f File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	for _, e := range f.Events {
		tracks := make(map[string]struct{}, len(e.Tracks))
		for _, t := range e.Tracks {
			tracks[t.ID] = struct{}{}
		}
		for _, t := range e.Teams {
			if _, ok := tracks[t.Track]; t.Track != "" && !ok {
				return fmt.Errorf("%w: team %s refers to unknown track %s", ErrInvalidSeed, t.ID, t.Track)
			}
		}
		for _, s := range e.Stages {
			if s.Deadline.IsZero() == (s.DeadlineIn == 0) {
				return fmt.Errorf("%w: stage %s needs exactly one of deadline or deadline_in", ErrInvalidSeed, s.ID)
			}
		}
	}
	return nil
}

// Apply writes every record of f that is not stored yet.
func Apply(ctx context.Context, store Store, f File, now time.Time) (Result, error) {
	var res Result
	count := func(what, id string, err error) error {
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, repository.ErrAlreadyExists):
			res.Existing++
		default:
			return fmt.Errorf("seed %s %s: %w", what, id, err)
		}
		return nil
	}

	for _, e := range f.Events {
		if err := count("event", e.ID, store.CreateEvent(ctx, model.Event{
			ID: e.ID, Name: e.Name, OwnerID: e.Owner, CreatedAt: now,
		})); err != nil {
			return res, err
		}
		for i, t := range e.Tracks {
			if err := count("track", t.ID, store.CreateTrack(ctx, model.Track{
				ID: t.ID, EventID: e.ID, Name: t.Name, Order: i + 1,
			})); err != nil {
				return res, err
			}
		}
		for _, t := range e.Teams {
			_, err := store.CreateTeam(ctx, model.Team{
				ID: t.ID, EventID: e.ID, TrackID: t.Track, Name: t.Name, Members: t.Members,
			})
			if err := count("team", t.ID, err); err != nil {
				return res, err
			}
		}
		for _, id := range e.Evaluators {
			if err := count("evaluator", id, store.AddEvaluator(ctx, model.EvaluatorAssignment{
				EventID: e.ID, EvaluatorID: id,
			})); err != nil {
				return res, err
			}
		}
		for i, s := range e.Stages {
			deadline := s.Deadline
			if s.DeadlineIn != 0 {
				deadline = now.Add(s.DeadlineIn)
			}
			if err := count("stage", s.ID, store.CreateStage(ctx, model.Stage{
				ID: s.ID, EventID: e.ID, Order: i + 1, Name: s.Name, Weight: s.Weight,
				Deadline: deadline.UTC(), RequiredEvaluators: s.RequiredEvaluators,
				BonusRate: s.BonusRate, PenaltyRate: s.PenaltyRate, Version: 1,
			})); err != nil {
				return res, err
			}
			for j, c := range s.Criteria {
				if err := count("criterion", c.ID, store.CreateCriterion(ctx, model.Criterion{
					ID: c.ID, StageID: s.ID, Name: c.Name, Order: j + 1, Weight: c.Weight,
				})); err != nil {
					return res, err
				}
			}
		}
	}
	return res, nil
}
