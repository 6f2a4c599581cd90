// matchmaking/entry.go
package matchmaking

import (
	"time"
)

// bucketKey partitions the queue. Entries only ever match inside their
// own bucket; stakes must be equal, so the stake is part of the key.
type bucketKey struct {
	GameKind string
	Players  int
	Stake    int64
}

// Entry is one queued user. A user holds at most one entry across all
// buckets. Timer IDs are kept so leave/match can cancel the staged
// timers before they fire.
type Entry struct {
	UserID          int64
	DisplayName     string
	GameKind        string
	RequiredPlayers int
	EntryStake      int64
	EnqueuedAt      time.Time

	botTimerID     int64
	ceilingTimerID int64
}

func (e *Entry) key() bucketKey {
	return bucketKey{GameKind: e.GameKind, Players: e.RequiredPlayers, Stake: e.EntryStake}
}
