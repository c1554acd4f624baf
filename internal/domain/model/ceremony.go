package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WinnerListSchemaV1 is the only winner list layout understood by this build.
const WinnerListSchemaV1 = 1

// RevealMode selects how a ceremony picks its winners.
type RevealMode string

// Reveal modes.
const (
	RevealOverall RevealMode = "overall"
	RevealTrack   RevealMode = "track"
)

// Winner list decoding errors.
var (
	ErrUnknownSchemaVersion = errors.New("unknown winner list schema version")
	ErrUnknownRevealMode    = errors.New("unknown reveal mode")
	ErrMalformedWinnerList  = errors.New("malformed winner list")
)

// Winner is one frozen row of a ceremony.
type Winner struct {
	Rank      int      `json:"rank"`
	TeamID    string   `json:"teamId"`
	TeamName  string   `json:"teamName"`
	Score     float64  `json:"score"`
	TrackID   string   `json:"trackId,omitempty"`
	TrackName string   `json:"trackName,omitempty"`
	Members   []string `json:"members,omitempty"`
}

// OverallWinners is the body of an overall-mode winner list.
type OverallWinners struct {
	Limit   int      `json:"limit"`
	Winners []Winner `json:"winners"`
}

// TrackWinners is the body of a track-mode winner list: one winner per track.
type TrackWinners struct {
	Winners []Winner `json:"winners"`
}

// WinnerList is the typed, versioned winner record of a ceremony.
// Exactly one body matching Mode is set.
type WinnerList struct {
	SchemaVersion int             `json:"schema_version"`
	Mode          RevealMode      `json:"mode"`
	Overall       *OverallWinners `json:"overall,omitempty"`
	Tracks        *TrackWinners   `json:"tracks,omitempty"`
}

// NewOverallWinnerList builds a v1 overall winner list.
func NewOverallWinnerList(limit int, winners []Winner) WinnerList {
	return WinnerList{
		SchemaVersion: WinnerListSchemaV1,
		Mode:          RevealOverall,
		Overall:       &OverallWinners{Limit: limit, Winners: winners},
	}
}

// NewTrackWinnerList builds a v1 track winner list.
func NewTrackWinnerList(winners []Winner) WinnerList {
	return WinnerList{
		SchemaVersion: WinnerListSchemaV1,
		Mode:          RevealTrack,
		Tracks:        &TrackWinners{Winners: winners},
	}
}

// Entries returns the ordered winners, best first.
func (w WinnerList) Entries() []Winner {
	switch w.Mode {
	case RevealOverall:
		if w.Overall != nil {
			return w.Overall.Winners
		}
	case RevealTrack:
		if w.Tracks != nil {
			return w.Tracks.Winners
		}
	}
	return nil
}

// Len is the number of winners.
func (w WinnerList) Len() int { return len(w.Entries()) }

// Validate checks version, mode and body consistency.
func (w WinnerList) Validate() error {
	if w.SchemaVersion != WinnerListSchemaV1 {
		return fmt.Errorf("%w: %d", ErrUnknownSchemaVersion, w.SchemaVersion)
	}
	switch w.Mode {
	case RevealOverall:
		if w.Overall == nil || w.Tracks != nil {
			return fmt.Errorf("%w: overall body required", ErrMalformedWinnerList)
		}
	case RevealTrack:
		if w.Tracks == nil || w.Overall != nil {
			return fmt.Errorf("%w: tracks body required", ErrMalformedWinnerList)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRevealMode, w.Mode)
	}
	return nil
}

// EncodeWinnerList serializes a validated winner list.
func EncodeWinnerList(w WinnerList) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// DecodeWinnerList parses a stored winner list, rejecting unknown versions.
func DecodeWinnerList(b []byte) (WinnerList, error) {
	var w WinnerList
	if err := json.Unmarshal(b, &w); err != nil {
		return WinnerList{}, fmt.Errorf("%w: %v", ErrMalformedWinnerList, err)
	}
	if err := w.Validate(); err != nil {
		return WinnerList{}, err
	}
	return w, nil
}

// CeremonySnapshot is a frozen winner list plus the reveal cursor.
type CeremonySnapshot struct {
	ID        string
	EventID   string
	Winners   WinnerList
	Cursor    int
	Active    bool
	CreatedAt time.Time
	StoppedAt *time.Time
}

// CeremonyState is the view derived from a snapshot and its cursor.
type CeremonyState struct {
	SnapshotID    string
	EventID       string
	Mode          RevealMode
	Active        bool
	TotalWinners  int
	Revealed      int
	CurrentWinner *Winner
	History       []Winner // in reveal order
}
