// matchmaking/engine.go
package matchmaking

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/matchserver/bots"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/timer"
)

// Client-facing result codes for queue admission.
const (
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeInvalidParameters   = "INVALID_PARAMETERS"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeNotInQueue          = "NOT_IN_QUEUE"
)

// ErrInsufficientBalance is what Wallet.Debit returns when the stake
// cannot be covered.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Wallet is the ledger collaborator. Calls may block on I/O, so the
// engine never holds its queue lock across them.
type Wallet interface {
	Debit(userID int64, amount int64) error
	Refund(userID int64, amount int64) error
}

// Catalog resolves a game kind to its fixed party size. Backed by the
// rules registry in production, by a stub in tests.
type Catalog interface {
	PartySize(gameKind string) (int, bool)
}

// SessionCreator allocates the session for a formed match.
type SessionCreator interface {
	CreateSession(gameKind string, stake int64, participants []game.Participant) *game.Session
}

// JoinResult is the immediate answer to a join request; matching
// itself is reported later through the event channel.
type JoinResult struct {
	Success bool
	Code    string
	Message string
}

// Config carries the staged admission delays. Production uses
// 15s/30s; tests shrink them.
type Config struct {
	// BotDeployDelay is the end of the human-priority window.
	BotDeployDelay time.Duration
	// QueueTimeout is the guaranteed-match ceiling.
	QueueTimeout time.Duration
	// RefundAttempts bounds the timeout refund retries.
	RefundAttempts int
}

// Engine owns the admission queue. One mutex serializes every bucket
// mutation; collaborator calls (wallet, bot supply) happen outside it
// with re-validation afterwards.
type Engine struct {
	cfg      Config
	catalog  Catalog
	sessions SessionCreator
	wallet   Wallet
	supply   bots.Supply
	timers   *timer.Manager

	buckets map[bucketKey][]*Entry
	byUser  map[int64]*Entry
	mutex   sync.Mutex
	events  chan Event
}

func NewEngine(cfg Config, catalog Catalog, sessions SessionCreator, wallet Wallet, supply bots.Supply, timers *timer.Manager) *Engine {
	if cfg.RefundAttempts <= 0 {
		cfg.RefundAttempts = 3
	}
	return &Engine{
		cfg:      cfg,
		catalog:  catalog,
		sessions: sessions,
		wallet:   wallet,
		supply:   supply,
		timers:   timers,
		buckets:  make(map[bucketKey][]*Entry),
		byUser:   make(map[int64]*Entry),
		events:   make(chan Event, 256),
	}
}

// Events is the engine's sole outbound channel: exactly one MatchFormed
// per created session, exactly one QueueTimeout per ceiling removal.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// JoinQueue validates and admits a user. It returns immediately; the
// caller learns about the eventual match through Events().
func (e *Engine) JoinQueue(userID int64, displayName, gameKind string, requiredPlayers int, entryStake int64) JoinResult {
	partySize, supported := e.catalog.PartySize(gameKind)
	if !supported {
		return JoinResult{Code: CodeInvalidParameters, Message: "unsupported game type"}
	}
	if requiredPlayers != partySize {
		return JoinResult{Code: CodeInvalidParameters, Message: "maxPlayers does not match the game's party size"}
	}
	if entryStake < 0 {
		return JoinResult{Code: CodeInvalidParameters, Message: "entryFee must not be negative"}
	}

	e.mutex.Lock()
	_, dup := e.byUser[userID]
	e.mutex.Unlock()
	if dup {
		return JoinResult{Code: CodeDuplicateEntry, Message: "already in a matchmaking queue"}
	}

	// Debit before insertion; wallet I/O must not run under the lock.
	if err := e.wallet.Debit(userID, entryStake); err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return JoinResult{Code: CodeInsufficientBalance, Message: "insufficient balance for entry fee"}
		}
		logger.Log.Errorf("wallet debit failed for user %d: %v", userID, err)
		return JoinResult{Code: CodeInvalidParameters, Message: "could not reserve entry fee"}
	}

	entry := &Entry{
		UserID:          userID,
		DisplayName:     displayName,
		GameKind:        gameKind,
		RequiredPlayers: requiredPlayers,
		EntryStake:      entryStake,
		EnqueuedAt:      time.Now(),
	}
	key := entry.key()

	e.mutex.Lock()
	if _, dup := e.byUser[userID]; dup {
		// A concurrent join slipped in during the debit.
		e.mutex.Unlock()
		if err := e.wallet.Refund(userID, entryStake); err != nil {
			logger.Log.Errorf("refund after duplicate join failed for user %d: %v", userID, err)
		}
		return JoinResult{Code: CodeDuplicateEntry, Message: "already in a matchmaking queue"}
	}

	e.byUser[userID] = entry
	e.buckets[key] = append(e.buckets[key], entry)

	event := e.tryMatchLocked(key)
	if _, stillQueued := e.byUser[userID]; stillQueued {
		entry.botTimerID = e.timers.Schedule(e.cfg.BotDeployDelay, 0, func() {
			e.runBotStage(userID)
		})
		entry.ceilingTimerID = e.timers.Schedule(e.cfg.QueueTimeout, 0, func() {
			e.runCeilingStage(userID)
		})
	}
	e.mutex.Unlock()

	if event != nil {
		e.events <- *event
	}
	return JoinResult{Success: true}
}

// LeaveQueue removes the user's entry and cancels its timers. Removing
// a missing entry is not an error; the second of two racing leaves (or
// a leave after the match already formed) reports removed=false.
func (e *Engine) LeaveQueue(userID int64) (removed bool) {
	e.mutex.Lock()
	entry, queued := e.byUser[userID]
	if !queued {
		e.mutex.Unlock()
		return false
	}
	e.removeEntryLocked(entry)
	e.mutex.Unlock()

	if err := e.wallet.Refund(userID, entry.EntryStake); err != nil {
		logger.Log.Errorf("refund on queue leave failed for user %d: %v", userID, err)
	}
	return true
}

// InQueue reports whether the user currently holds an entry.
func (e *Engine) InQueue(userID int64) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	_, queued := e.byUser[userID]
	return queued
}

// QueueDepth reports the total number of queued entries, for the
// monitor gauge.
func (e *Engine) QueueDepth() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.byUser)
}

// tryMatchLocked forms a human-vs-human match if the bucket holds a
// full party. Oldest entries first; the bucket slice is already in
// FIFO join order.
func (e *Engine) tryMatchLocked(key bucketKey) *MatchFormed {
	bucket := e.buckets[key]
	if len(bucket) < key.Players {
		return nil
	}
	return e.formMatchLocked(key, bucket[:key.Players], nil)
}

// formMatchLocked removes the matched entries and creates the session
// in one step, so no half-formed match is ever observable. Humans are
// seated in FIFO join order, bots after them.
func (e *Engine) formMatchLocked(key bucketKey, humans []*Entry, botIdents []bots.Identity) *MatchFormed {
	matched := make(map[*Entry]struct{}, len(humans))
	for _, en := range humans {
		matched[en] = struct{}{}
		delete(e.byUser, en.UserID)
		e.timers.Cancel(en.botTimerID)
		e.timers.Cancel(en.ceilingTimerID)
	}

	bucket := e.buckets[key]
	remaining := bucket[:0]
	for _, en := range bucket {
		if _, ok := matched[en]; !ok {
			remaining = append(remaining, en)
		}
	}
	if len(remaining) == 0 {
		delete(e.buckets, key)
	} else {
		e.buckets[key] = remaining
	}

	participants := make([]game.Participant, 0, len(humans)+len(botIdents))
	for _, en := range humans {
		participants = append(participants, game.Participant{
			UserID:      en.UserID,
			DisplayName: en.DisplayName,
		})
	}
	for _, b := range botIdents {
		participants = append(participants, game.Participant{
			UserID:      b.UserID,
			DisplayName: b.DisplayName,
			Status:      game.PlayerReady,
			IsBot:       true,
		})
	}

	session := e.sessions.CreateSession(key.GameKind, key.Stake, participants)

	users := make([]MatchedUser, 0, len(humans))
	for seat, en := range humans {
		users = append(users, MatchedUser{
			UserID:      en.UserID,
			DisplayName: en.DisplayName,
			Seat:        seat,
		})
	}

	return &MatchFormed{
		Session:   session,
		Users:     users,
		BotFilled: len(botIdents) > 0,
	}
}

// runBotStage is the 15s stage: fill the empty seats of the entry's
// bucket with bots. If supply comes up short the entry stays queued
// and the 30s ceiling picks it up.
func (e *Engine) runBotStage(userID int64) {
	e.mutex.Lock()
	entry, queued := e.byUser[userID]
	if !queued {
		e.mutex.Unlock()
		return
	}
	key := entry.key()
	missing := key.Players - len(e.buckets[key])
	e.mutex.Unlock()

	if missing <= 0 {
		return
	}

	acquired := e.supply.AcquireBots(key.GameKind, missing)
	event, _ := e.completeWithBots(userID, key, acquired)
	if event != nil {
		e.events <- *event
	}
}

// runCeilingStage is the 30s hard bound: retry bot acquisition, and if
// the session still cannot be filled, remove the entry, refund the
// stake and report the timeout. No entry survives past this point.
func (e *Engine) runCeilingStage(userID int64) {
	e.mutex.Lock()
	entry, queued := e.byUser[userID]
	if !queued {
		e.mutex.Unlock()
		return
	}
	key := entry.key()
	missing := key.Players - len(e.buckets[key])
	e.mutex.Unlock()

	var acquired []bots.Identity
	if missing > 0 {
		acquired = e.supply.AcquireBots(key.GameKind, missing)
	}

	event, stillQueued := e.completeWithBots(userID, key, acquired)
	if event != nil {
		e.events <- *event
		return
	}
	if !stillQueued {
		return
	}

	e.mutex.Lock()
	entry, queued = e.byUser[userID]
	if !queued {
		// Matched or left between the two critical sections.
		e.mutex.Unlock()
		return
	}
	e.removeEntryLocked(entry)
	e.mutex.Unlock()

	refunded := e.refundWithRetry(entry.UserID, entry.EntryStake)
	e.events <- QueueTimeout{
		UserID:     entry.UserID,
		EntryStake: entry.EntryStake,
		Refunded:   refunded,
	}
}

// completeWithBots re-validates the entry after the supply call and
// forms the bot-filled match if the acquired bots cover the missing
// seats. Unused identities go back to the pool.
func (e *Engine) completeWithBots(userID int64, key bucketKey, acquired []bots.Identity) (*MatchFormed, bool) {
	e.mutex.Lock()
	_, queued := e.byUser[userID]
	if !queued {
		e.mutex.Unlock()
		e.releaseAll(acquired)
		return nil, false
	}

	bucket := e.buckets[key]
	missing := key.Players - len(bucket)
	if missing <= 0 {
		e.mutex.Unlock()
		e.releaseAll(acquired)
		return nil, true
	}
	if len(acquired) < missing {
		e.mutex.Unlock()
		e.releaseAll(acquired)
		return nil, true
	}

	humans := make([]*Entry, len(bucket))
	copy(humans, bucket)
	event := e.formMatchLocked(key, humans, acquired[:missing])
	e.mutex.Unlock()

	e.releaseAll(acquired[missing:])
	return event, false
}

func (e *Engine) releaseAll(idents []bots.Identity) {
	for _, b := range idents {
		e.supply.ReleaseBot(b)
	}
}

// removeEntryLocked takes the entry out of both indices and cancels
// its staged timers.
func (e *Engine) removeEntryLocked(entry *Entry) {
	delete(e.byUser, entry.UserID)
	e.timers.Cancel(entry.botTimerID)
	e.timers.Cancel(entry.ceilingTimerID)

	key := entry.key()
	bucket := e.buckets[key]
	remaining := bucket[:0]
	for _, en := range bucket {
		if en != entry {
			remaining = append(remaining, en)
		}
	}
	if len(remaining) == 0 {
		delete(e.buckets, key)
	} else {
		e.buckets[key] = remaining
	}
}

// refundWithRetry makes a bounded number of refund attempts. A final
// failure is an operator-visible error, never a silent drop.
func (e *Engine) refundWithRetry(userID int64, amount int64) bool {
	var err error
	for attempt := 1; attempt <= e.cfg.RefundAttempts; attempt++ {
		if err = e.wallet.Refund(userID, amount); err == nil {
			return true
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	logger.Log.Errorf("queue timeout refund failed for user %d after %d attempts: %v", userID, e.cfg.RefundAttempts, err)
	return false
}
