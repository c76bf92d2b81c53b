package standings

import (
	"sort"
	"sync"
)

// SeasonRecord is a team's current season line from the standings feed
type SeasonRecord struct {
	Wins     int `json:"wins"`
	Losses   int `json:"losses"`
	OTLosses int `json:"ot_losses"`
	Points   int `json:"points"`
}

// TeamInfo is the cached view of one team
type TeamInfo struct {
	ID           int64        `json:"team_id,omitempty"`
	Name         string       `json:"team_name"`
	Abbreviation string       `json:"abbreviation"`
	Conference   string       `json:"conference,omitempty"`
	Division     string       `json:"division,omitempty"`
	Record       SeasonRecord `json:"record"`
}

// TeamCache maps abbreviations to team info. Entries are merged in place and
// never cleared wholesale. Safe for concurrent use.
type TeamCache struct {
	mu    sync.RWMutex
	teams map[string]TeamInfo
}

// NewTeamCache creates an empty cache
func NewTeamCache() *TeamCache {
	return &TeamCache{teams: make(map[string]TeamInfo)}
}

// Merge updates the entry for info.Abbreviation. Empty fields in info keep
// the cached value.
func (c *TeamCache) Merge(info TeamInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.teams[info.Abbreviation]
	if !ok {
		c.teams[info.Abbreviation] = info
		return
	}

	if info.ID != 0 {
		current.ID = info.ID
	}
	if info.Name != "" {
		current.Name = info.Name
	}
	if info.Conference != "" {
		current.Conference = info.Conference
	}
	if info.Division != "" {
		current.Division = info.Division
	}
	current.Record = info.Record
	c.teams[info.Abbreviation] = current
}

// Get returns the cached entry for an abbreviation
func (c *TeamCache) Get(abbr string) (TeamInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.teams[abbr]
	return info, ok
}

// All returns every cached team ordered by abbreviation
func (c *TeamCache) All() []TeamInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	teams := make([]TeamInfo, 0, len(c.teams))
	for _, info := range c.teams {
		teams = append(teams, info)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Abbreviation < teams[j].Abbreviation })
	return teams
}

// Len returns the number of cached teams
func (c *TeamCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.teams)
}
