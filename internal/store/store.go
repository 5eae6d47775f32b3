// Package store persists per-player progression records. Records are written
// through on every mutating operation so a crash never loses more than the
// in-flight change.
package store

// LedgerSnapshot is the persisted form of a player's economy ledger.
type LedgerSnapshot struct {
	Level                  int                `json:"level"`
	TotalExperience        float64            `json:"totalExperience"`
	CurrentLevelExperience float64            `json:"currentLevelExperience"`
	Points                 map[string]int     `json:"points"`
	ExperienceByType       map[string]float64 `json:"experienceByType"`
	Multipliers            map[string]float64 `json:"multipliers"`
}

// Record is the persisted state for one player.
type Record struct {
	PlayerID         string         `json:"playerId"`
	StudiedRecipeIDs []string       `json:"studiedRecipeIds"`
	ResetRecipeIDs   []string       `json:"resetRecipeIds"`
	Ledger           LedgerSnapshot `json:"ledger"`
}

// PlayerStore loads and saves player records. Load reports false when no
// record exists yet; a fresh record is not an error.
type PlayerStore interface {
	Load(playerID string) (Record, bool, error)
	Save(record Record) error
	Close() error
}
