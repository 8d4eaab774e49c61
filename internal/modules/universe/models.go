// Package universe maintains the symbol relationship index: named sets of
// ticker symbols (indexes, sectors, watchlists) and the resolver that turns
// colon-joined universe expressions into concrete symbol lists.
package universe

import "time"

// Record describes one named universe. MemberCount is derived from the
// membership table, not stored on the universe row itself.
type Record struct {
	Key         string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	MemberCount int       `json:"member_count"`
	UpdatedAt   time.Time `json:"-"`
}

// Universe types as stored in the relationship index. The column is an
// open tag, these are the ones the seed data uses.
const (
	TypeIndex     = "index"
	TypeFund      = "fund"
	TypeSector    = "sector"
	TypeWatchlist = "watchlist"
)
