package model

// Race is one row of the club's shared race-calendar spreadsheet, merged
// with locally accumulated community state (Comments, Excited).
//
// The sheet columns map positionally: month, country, name, info, date,
// distances, type, then up to thirteen runner-name columns. Comments and
// Excited never come from the sheet — they are preserved across refreshes
// by positional row index, which silently misattributes them if the sheet
// reorders or inserts rows. That contract is inherited from how the cache
// has always worked and is load-bearing for existing data.
type Race struct {
	Month     string                  `json:"month"`
	Country   string                  `json:"country"`
	Name      string                  `json:"name"`
	Info      string                  `json:"info"`
	Date      string                  `json:"date"`
	Distances string                  `json:"distances"`
	Type      string                  `json:"type"`
	Runners   []string                `json:"runners"`
	Comments  []Comment               `json:"comments"`
	Excited   map[string]ExcitedEntry `json:"excited"`
}

// ExcitedEntry marks one member as excited for a race. Presence of the
// member's key under Race.Excited is the source of truth; unsetting removes
// the key entirely rather than flipping Value.
type ExcitedEntry struct {
	Value bool `json:"value"`
}

// RaceSnapshot is the cached calendar: the merged rows plus the time of the
// last successful sheet fetch (unix milliseconds, matching what clients
// already store).
type RaceSnapshot struct {
	Races       []Race `json:"races"`
	LastUpdated int64  `json:"lastUpdated"`
}
