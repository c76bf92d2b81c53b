package nhl

import (
	"encoding/json"
	"testing"

	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scheduleFixture = `{
  "gameWeek": [
    {"date": "2024-01-09", "games": [
      {"id": 2023020600, "gameType": 2, "gameState": "OFF",
       "homeTeam": {"id": 10, "abbrev": "TOR", "placeName": {"default": "Toronto"}, "commonName": {"default": "Maple Leafs"}, "score": 4},
       "awayTeam": {"id": 8, "abbrev": "MTL", "placeName": {"default": "Montréal"}, "commonName": {"default": "Canadiens"}, "score": 1}}
    ]},
    {"date": "2024-01-10", "games": [
      {"id": 2023020610, "gameType": 2, "gameState": "FINAL",
       "homeTeam": {"id": 6, "abbrev": "BOS", "placeName": {"default": "Boston"}, "commonName": {"default": "Bruins"}, "score": 3},
       "awayTeam": {"id": 3, "abbrev": "NYR", "placeName": {"default": "New York"}, "commonName": {"default": "Rangers"}, "score": 2},
       "gameOutcome": {"lastPeriodType": "SO"}},
      {"id": 2023020611, "gameType": 2, "gameState": "CRIT",
       "homeTeam": {"id": 22, "abbrev": "EDM", "placeName": {"default": "Edmonton"}, "commonName": {"default": "Oilers"}, "score": 0},
       "awayTeam": {"id": 20, "abbrev": "CGY", "placeName": {"default": "Calgary"}, "score": 1},
       "gameOutcome": {"lastPeriodType": "OT"}},
      {"id": 2023020612, "gameType": 2, "gameState": "FUT",
       "homeTeam": {"abbrev": "vgk", "commonName": {"default": "Golden Knights"}},
       "awayTeam": {"id": 26, "abbrev": "LAK", "placeName": {"default": "Los Angeles"}, "commonName": {"default": "Kings"}}},
      {"id": 2023020613, "gameType": 2, "gameState": "FINAL",
       "homeTeam": {"id": 1, "abbrev": "NJD", "score": 2},
       "awayTeam": {"id": 2, "abbrev": "NYI", "score": 5}},
      {"id": 2023010001, "gameType": 1, "gameState": "FUT",
       "homeTeam": {"id": 1, "abbrev": "NJD"}, "awayTeam": {"id": 2, "abbrev": "NYI"}},
      {"id": 2023040001, "gameType": 4, "gameState": "FUT",
       "homeTeam": {"id": 1, "abbrev": "NJD"}, "awayTeam": {"id": 2, "abbrev": "NYI"}},
      {"gameType": 2, "gameState": "FUT",
       "homeTeam": {"id": 1, "abbrev": "NJD"}, "awayTeam": {"id": 2, "abbrev": "NYI"}},
      {"id": 2023020614, "gameType": 2, "gameState": "WEIRD",
       "homeTeam": {"id": 1}, "awayTeam": {"id": 2, "abbrev": "NYI"}},
      {"id": 2023020615, "gameType": 2, "gameState": "PRE",
       "homeTeam": {"id": 54, "abbrev": "SEA", "placeName": {"default": "Seattle"}, "commonName": {"default": "Kraken"}},
       "awayTeam": {"id": 55, "abbrev": "UTA", "placeName": {"default": "Utah"}, "commonName": {"default": "Hockey Club"}}}
    ]}
  ]
}`

func decodeFixture(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestParseScheduleSelectsRequestedDay(t *testing.T) {
	logger, hook := test.NewNullLogger()
	games, err := ParseSchedule(decodeFixture(t, scheduleFixture), "2024-01-10", logger)
	require.NoError(t, err)
	require.Len(t, games, 5)

	byID := map[int64]NormalizedGame{}
	for _, g := range games {
		assert.Equal(t, "2024-01-10", g.Date)
		byID[g.GameID] = g
	}

	final := byID[2023020610]
	assert.Equal(t, store.StateFinal, final.State)
	assert.Equal(t, store.WinShootout, final.WinType)
	assert.Equal(t, "Boston Bruins", final.Home.Name)
	assert.Equal(t, int64(6), final.Home.ID)
	assert.Equal(t, int32(3), final.HomeScore.Int32)
	assert.Equal(t, int32(2), final.AwayScore.Int32)

	live := byID[2023020611]
	assert.Equal(t, store.StateLive, live.State)
	assert.Empty(t, live.WinType, "win type only for final games")
	assert.True(t, live.HomeScore.Valid)
	assert.Zero(t, live.HomeScore.Int32)
	assert.Equal(t, "Calgary Unknown", live.Away.Name)

	future := byID[2023020612]
	assert.Equal(t, store.StateScheduled, future.State)
	assert.Equal(t, "VGK", future.Home.Abbreviation)
	assert.Equal(t, DeriveTeamID("VGK"), future.Home.ID)
	assert.Equal(t, "Unknown Golden Knights", future.Home.Name)
	assert.False(t, future.HomeScore.Valid)

	regulation := byID[2023020613]
	assert.Equal(t, store.WinRegulation, regulation.WinType, "missing lastPeriodType on a final game")

	assert.Equal(t, store.StateScheduled, byID[2023020615].State)

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings, "missing id and missing abbreviation are both skipped")
}

func TestParseScheduleUnknownStateIsScheduled(t *testing.T) {
	assert.Equal(t, store.StateScheduled, mapState("WEIRD"))
	assert.Equal(t, store.StateScheduled, mapState(""))
	assert.Equal(t, store.StateLive, mapState("LIVE"))
	assert.Equal(t, store.StateFinal, mapState("OFF"))
}

func TestParseScheduleNoMatchingDay(t *testing.T) {
	logger, _ := test.NewNullLogger()
	games, err := ParseSchedule(decodeFixture(t, scheduleFixture), "2024-02-01", logger)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestParseScheduleMissingGameWeek(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := ParseSchedule(map[string]interface{}{"nextStartDate": "2024-01-15"}, "2024-01-10", logger)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestDeriveTeamIDIsStable(t *testing.T) {
	assert.Equal(t, DeriveTeamID("tor"), DeriveTeamID("TOR"))
	assert.NotEqual(t, DeriveTeamID("TOR"), DeriveTeamID("MTL"))
	assert.GreaterOrEqual(t, DeriveTeamID("TOR"), int64(100000))
}

func TestParseStandings(t *testing.T) {
	logger, hook := test.NewNullLogger()
	doc := decodeFixture(t, `{"standings": [
	  {"teamAbbrev": {"default": "BOS"}, "teamName": {"default": "Boston Bruins"},
	   "conferenceName": "Eastern", "divisionName": "Atlantic",
	   "wins": 30, "losses": 10, "otLosses": 5, "points": 65},
	  {"teamName": {"default": "Nameless"}},
	  "garbage"
	]}`)

	entries, err := ParseStandings(doc, logger)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StandingsEntry{
		Abbreviation: "BOS", Name: "Boston Bruins", Conference: "Eastern", Division: "Atlantic",
		Wins: 30, Losses: 10, OTLosses: 5, Points: 65,
	}, entries[0])
	assert.Len(t, hook.AllEntries(), 2)
}

func TestParseStandingsMissingKey(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := ParseStandings(map[string]interface{}{}, logger)
	assert.ErrorIs(t, err, ErrMissingKey)
}
