package engine

import "github.com/crickora/auction-engine/auctioneer/database/models"

// Every mutation of an auction enters the worker as an intent on a single
// bounded queue: team bids, admin actions, trade operations, and the
// worker's own timer callbacks. Queue order is the total order of the
// auction; there are no other synchronization points.

type intent interface{ isIntent() }

// BidReceipt is the synchronous reply to the bidder, returned before the
// broadcast reaches other clients.
type BidReceipt struct {
	Accepted   bool  `json:"accepted"`
	Amount     int64 `json:"amount"`
	LotVersion int64 `json:"lotVersion"`
}

type bidReply struct {
	receipt BidReceipt
	err     error
}

// bidIntent is a raise by teamID. The amount is never client-supplied; the
// processor charges exactly the next minimum bid. RequestID makes replays
// idempotent. A nonzero lotVersion pins the bid to the lot state the
// bidder saw.
type bidIntent struct {
	teamID     int64
	requestID  string
	lotVersion int64
	reply      chan bidReply
}

// timerFiredIntent is a phase timer callback re-injected into the queue.
// version tombstones it: if the lot moved on since scheduling, it is a
// no-op.
type timerFiredIntent struct {
	version int64
}

// windowExpiredIntent closes the trade window at its deadline.
type windowExpiredIntent struct{}

// degradedIntent wakes an idle worker after a persistence state change.
// It carries no payload; dispatch reads the state from the worker's
// degraded flag.
type degradedIntent struct{}

type lifecycleKind int

const (
	opStart lifecycleKind = iota
	opEnd
	opStartBidding
	opPause
	opResume
	opForceSell
	opForceUnsold
	opUndo
	opOpenTradeWindow
	opFinalize
	opReorderPool
)

type lifecycleIntent struct {
	kind   lifecycleKind
	teamID int64   // forceSell winner
	order  []int64 // reorderPool
	reply  chan error
}

type advanceReply struct {
	playerID int64
	err      error
}

// advanceIntent pulls the next pending player once the current lot is
// terminal.
type advanceIntent struct {
	reply chan advanceReply
}

type snapshotIntent struct {
	reply chan Snapshot
}

// poolIntent reads a copy of the pending pool, for admin search and
// reorder tooling.
type poolIntent struct {
	reply chan []*models.Player
}

// TradeRequest is a bilateral swap proposal between two teams.
type TradeRequest struct {
	FromTeamID         int64
	ToTeamID           int64
	OfferedPlayerIDs   []int64
	RequestedPlayerIDs []int64
	PurseAdjustment    int64
}

type tradeProposeReply struct {
	proposalID string
	err        error
}

type tradeProposeIntent struct {
	req   TradeRequest
	reply chan tradeProposeReply
}

type tradeActionKind int

const (
	tradeAccept tradeActionKind = iota
	tradeReject
	tradeWithdraw
)

type tradeActionIntent struct {
	kind       tradeActionKind
	proposalID string
	teamID     int64 // acting team, for authorization
	reply      chan error
}

func (bidIntent) isIntent()           {}
func (timerFiredIntent) isIntent()    {}
func (windowExpiredIntent) isIntent() {}
func (degradedIntent) isIntent()      {}
func (lifecycleIntent) isIntent()     {}
func (advanceIntent) isIntent()       {}
func (snapshotIntent) isIntent()      {}
func (poolIntent) isIntent()          {}
func (tradeProposeIntent) isIntent()  {}
func (tradeActionIntent) isIntent()   {}
