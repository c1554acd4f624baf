package model

// SceneMode selects what the public display renders.
type SceneMode string

// Scene modes.
const (
	SceneLeaderboard SceneMode = "leaderboard"
	SceneTrack       SceneMode = "track"
	SceneCeremony    SceneMode = "ceremony"
	SceneIdle        SceneMode = "idle"
)

// Valid reports whether m is a known scene mode.
func (m SceneMode) Valid() bool {
	switch m {
	case SceneLeaderboard, SceneTrack, SceneCeremony, SceneIdle:
		return true
	}
	return false
}

// DisplayState is the persisted public-display state of an event.
type DisplayState struct {
	EventID string
	Frozen  bool
	Scene   SceneMode
	TrackID string
}
