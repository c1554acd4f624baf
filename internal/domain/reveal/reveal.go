// Package reveal freezes a leaderboard into a winner list and steps through
// it last-ranked first. All views derive from the snapshot and its cursor.
package reveal

import (
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// BuildWinners freezes ranked entries into a winner list.
//
// Overall mode keeps the top limit entries. Track mode keeps the best entry of
// each track, ordered by their overall position. Teams without a track are
// ignored in track mode.
func BuildWinners(mode model.RevealMode, limit int, ranked []model.LeaderboardEntry, tracks []model.Track) (model.WinnerList, error) {
	trackNames := make(map[string]string, len(tracks))
	for _, t := range tracks {
		trackNames[t.ID] = t.Name
	}
	toWinner := func(rank int, e model.LeaderboardEntry) model.Winner {
		return model.Winner{
			Rank:      rank,
			TeamID:    e.TeamID,
			TeamName:  e.TeamName,
			Score:     e.TotalScore,
			TrackID:   e.TrackID,
			TrackName: trackNames[e.TrackID],
			Members:   append([]string(nil), e.Members...),
		}
	}

	switch mode {
	case model.RevealOverall:
		if limit < 1 {
			return model.WinnerList{}, ErrInvalidLimit
		}
		n := min(limit, len(ranked))
		winners := make([]model.Winner, 0, n)
		for i := 0; i < n; i++ {
			winners = append(winners, toWinner(i+1, ranked[i]))
		}
		return model.NewOverallWinnerList(limit, winners), nil

	case model.RevealTrack:
		seen := make(map[string]struct{})
		winners := make([]model.Winner, 0, len(tracks))
		for _, e := range ranked {
			if e.TrackID == "" {
				continue
			}
			if _, ok := seen[e.TrackID]; ok {
				continue
			}
			seen[e.TrackID] = struct{}{}
			winners = append(winners, toWinner(len(winners)+1, e))
		}
		return model.NewTrackWinnerList(winners), nil
	}
	return model.WinnerList{}, ErrInvalidMode
}

// Start creates a fresh active snapshot with the cursor at zero.
func Start(id, eventID string, winners model.WinnerList, now time.Time) (model.CeremonySnapshot, error) {
	if err := winners.Validate(); err != nil {
		return model.CeremonySnapshot{}, err
	}
	if winners.Len() == 0 {
		return model.CeremonySnapshot{}, ErrNoWinners
	}
	return model.CeremonySnapshot{
		ID:        id,
		EventID:   eventID,
		Winners:   winners,
		Cursor:    0,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// Next returns the cursor after one reveal and the winner it exposes.
// It does not mutate the snapshot; callers persist the new cursor with a
// compare-and-set on the old one.
func Next(s model.CeremonySnapshot) (int, model.Winner, error) {
	if !s.Active {
		return s.Cursor, model.Winner{}, ErrNoActiveCeremony
	}
	entries := s.Winners.Entries()
	n := len(entries)
	if s.Cursor >= n {
		return s.Cursor, model.Winner{}, ErrAllRevealed
	}
	cursor := s.Cursor + 1
	return cursor, entries[n-cursor], nil
}

// State derives the current winner and reveal history from a snapshot.
func State(s model.CeremonySnapshot) model.CeremonyState {
	entries := s.Winners.Entries()
	n := len(entries)
	cursor := max(0, min(s.Cursor, n))

	st := model.CeremonyState{
		SnapshotID:   s.ID,
		EventID:      s.EventID,
		Mode:         s.Winners.Mode,
		Active:       s.Active,
		TotalWinners: n,
		Revealed:     cursor,
		History:      make([]model.Winner, 0, cursor),
	}
	for i := 1; i <= cursor; i++ {
		st.History = append(st.History, entries[n-i])
	}
	if cursor > 0 {
		w := entries[n-cursor]
		st.CurrentWinner = &w
	}
	return st
}
