package domain

import (
	"time"
)

// Client is an anonymous browser identity.
type Client struct {
	ClientID   string    `json:"client_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ArchivedSession is the audit record of one ledger lifetime.
// A reset starts a new ArchivedSession under a new ledger ID.
type ArchivedSession struct {
	LedgerID         string
	ClientID         string
	SessionID        string
	TurnCount        int
	LatestConfidence int
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// ArchivedTurn is a ledger turn as written to the archive.
type ArchivedTurn struct {
	LedgerID        string
	Seq             int
	Role            Role
	Content         string
	ConfidenceLevel *int
	Fallback        bool
	CreatedAt       time.Time
}
