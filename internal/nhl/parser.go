package nhl

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/fortuna/aurora/internal/store"
	"github.com/sirupsen/logrus"
)

const unknownName = "Unknown"

// ParseSchedule extracts the games played on date from a schedule document.
// A document without the requested day yields no games and no error.
func ParseSchedule(doc map[string]interface{}, date string, log logrus.FieldLogger) ([]NormalizedGame, error) {
	raw, ok := doc["gameWeek"]
	if !ok {
		return nil, fmt.Errorf("%w: gameWeek", ErrMissingKey)
	}
	week, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: gameWeek is not a list", ErrMissingKey)
	}

	games := []NormalizedGame{}
	for _, dayInterface := range week {
		day, ok := dayInterface.(map[string]interface{})
		if !ok || extractString(day, "date") != date {
			continue
		}

		for _, gameInterface := range extractArray(day, "games") {
			entry, ok := gameInterface.(map[string]interface{})
			if !ok {
				log.WithField("date", date).Warn("Skipping malformed game entry")
				continue
			}

			game, err := parseGame(entry, date)
			if err != nil {
				log.WithError(err).WithField("date", date).Warn("Skipping game entry")
				continue
			}
			if game.GameType == GameTypePreseason || game.GameType == GameTypeAllStar {
				log.WithFields(logrus.Fields{"game_id": game.GameID, "game_type": game.GameType}).
					Debug("Dropping exhibition game")
				continue
			}
			games = append(games, game)
		}
	}

	return games, nil
}

func parseGame(entry map[string]interface{}, date string) (NormalizedGame, error) {
	gameID, ok := extractInt64(entry, "id")
	if !ok {
		return NormalizedGame{}, fmt.Errorf("game entry has no id")
	}

	home, err := parseTeam(extractMap(entry, "homeTeam"))
	if err != nil {
		return NormalizedGame{}, fmt.Errorf("game %d home team: %w", gameID, err)
	}
	away, err := parseTeam(extractMap(entry, "awayTeam"))
	if err != nil {
		return NormalizedGame{}, fmt.Errorf("game %d away team: %w", gameID, err)
	}

	game := NormalizedGame{
		GameID:    gameID,
		Date:      date,
		GameType:  extractInt(entry, "gameType"),
		Home:      home,
		Away:      away,
		HomeScore: extractScore(extractMap(entry, "homeTeam")),
		AwayScore: extractScore(extractMap(entry, "awayTeam")),
		State:     mapState(extractString(entry, "gameState")),
	}
	if game.State == store.StateFinal {
		game.WinType = mapWinType(extractString(extractMap(entry, "gameOutcome"), "lastPeriodType"))
	}

	return game, nil
}

func parseTeam(team map[string]interface{}) (TeamMeta, error) {
	abbr := strings.ToUpper(strings.TrimSpace(extractString(team, "abbrev")))
	if abbr == "" {
		return TeamMeta{}, fmt.Errorf("missing abbreviation")
	}

	id, ok := extractInt64(team, "id")
	if !ok {
		id = DeriveTeamID(abbr)
	}

	place := fallbackString(extractString(extractMap(team, "placeName"), "default"), unknownName)
	common := fallbackString(extractString(extractMap(team, "commonName"), "default"), unknownName)

	return TeamMeta{ID: id, Abbreviation: abbr, Name: place + " " + common}, nil
}

// mapState folds the feed's state vocabulary into the three lifecycle states
func mapState(raw string) store.GameState {
	switch strings.ToUpper(raw) {
	case "LIVE", "CRIT":
		return store.StateLive
	case "FINAL", "OFF":
		return store.StateFinal
	default:
		return store.StateScheduled
	}
}

func mapWinType(lastPeriod string) store.WinType {
	switch strings.ToUpper(lastPeriod) {
	case "OT":
		return store.WinOvertime
	case "SO":
		return store.WinShootout
	default:
		return store.WinRegulation
	}
}

// DeriveTeamID maps an abbreviation to a stable id for feeds that omit the
// numeric team id. Derived ids start at 100000, above every real franchise id.
func DeriveTeamID(abbr string) int64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(abbr)))
	return 100000 + int64(h.Sum32()%900000)
}

// ParseStandings extracts one entry per team from the standings document.
// Entries without an abbreviation are skipped with a warning.
func ParseStandings(doc map[string]interface{}, log logrus.FieldLogger) ([]StandingsEntry, error) {
	raw, ok := doc["standings"]
	if !ok {
		return nil, fmt.Errorf("%w: standings", ErrMissingKey)
	}
	rows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: standings is not a list", ErrMissingKey)
	}

	entries := make([]StandingsEntry, 0, len(rows))
	for i, rowInterface := range rows {
		row, ok := rowInterface.(map[string]interface{})
		if !ok {
			log.WithField("index", i).Warn("Skipping malformed standings entry")
			continue
		}

		abbr := strings.ToUpper(strings.TrimSpace(extractString(extractMap(row, "teamAbbrev"), "default")))
		if abbr == "" {
			log.WithField("index", i).Warn("Skipping standings entry without team abbreviation")
			continue
		}

		entries = append(entries, StandingsEntry{
			Abbreviation: abbr,
			Name:         extractString(extractMap(row, "teamName"), "default"),
			Conference:   extractString(row, "conferenceName"),
			Division:     extractString(row, "divisionName"),
			Wins:         extractInt(row, "wins"),
			Losses:       extractInt(row, "losses"),
			OTLosses:     extractInt(row, "otLosses"),
			Points:       extractInt(row, "points"),
		})
	}

	return entries, nil
}

// Helper functions

func extractString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

func fallbackString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func extractInt(m map[string]interface{}, key string) int {
	n, _ := extractInt64(m, key)
	return int(n)
}

// extractInt64 reports false when the key is absent or not numeric
func extractInt64(m map[string]interface{}, key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return parseInt(v)
}

func extractScore(team map[string]interface{}) sql.NullInt32 {
	score, ok := extractInt64(team, "score")
	if !ok {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(score), Valid: true}
}

func extractMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if mapVal, ok := v.(map[string]interface{}); ok {
			return mapVal
		}
	}
	return map[string]interface{}{}
}

func extractArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key]; ok {
		if arrVal, ok := v.([]interface{}); ok {
			return arrVal
		}
	}
	return []interface{}{}
}

func parseInt(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), true
	case json.Number:
		i, err := val.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return i, err == nil
	case int:
		return int64(val), true
	case int64:
		return val, true
	default:
		return 0, false
	}
}
