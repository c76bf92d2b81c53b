package nhl

import (
	"database/sql"

	"github.com/fortuna/aurora/internal/store"
)

// Game types used by the feed
const (
	GameTypePreseason = 1
	GameTypeRegular   = 2
	GameTypePlayoff   = 3
	GameTypeAllStar   = 4
)

// TeamMeta identifies one side of a game as the feed reports it
type TeamMeta struct {
	ID           int64
	Abbreviation string
	Name         string
}

// NormalizedGame is a schedule entry translated into the store's vocabulary.
// WinType is set only when State is final.
type NormalizedGame struct {
	GameID    int64
	Date      string
	GameType  int
	Home      TeamMeta
	Away      TeamMeta
	HomeScore sql.NullInt32
	AwayScore sql.NullInt32
	State     store.GameState
	WinType   store.WinType
}

// StandingsEntry is one row of the standings document
type StandingsEntry struct {
	Abbreviation string
	Name         string
	Conference   string
	Division     string
	Wins         int
	Losses       int
	OTLosses     int
	Points       int
}
