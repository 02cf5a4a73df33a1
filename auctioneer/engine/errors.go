// Package engine implements the live player-auction core: the per-lot
// bidding state machine, the serialized bid processor, team purse
// accounting, and the post-auction trade window. All mutation of one
// auction's state flows through a single worker goroutine.
package engine

import "errors"

// Bid rejection errors, returned synchronously to the bidder.
var (
	ErrLotNotOpen           = errors.New("lot is not open for bidding")
	ErrAlreadyHighestBidder = errors.New("team is already the highest bidder")
	ErrStaleBid             = errors.New("bid references a superseded lot version")
	ErrInsufficientPurse    = errors.New("insufficient purse for bid")
	ErrSquadFull            = errors.New("squad is at maximum size")
)

// Lifecycle and admin errors.
var (
	ErrInvalidPhaseTransition = errors.New("invalid lot phase transition")
	ErrAuctionNotLive         = errors.New("auction is not live")
	ErrAuctionDegraded        = errors.New("auction is degraded, persistence unconfirmed")
	ErrLotNotTerminal         = errors.New("current lot is not terminal")
	ErrPoolExhausted          = errors.New("no pending players left in the pool")
	ErrUnknownTeam            = errors.New("unknown team")
	ErrNothingToUndo          = errors.New("undo stack is empty")
	ErrWorkerClosed           = errors.New("auction worker is shut down")
)

// Trade window errors.
var (
	ErrAuctionNotInTradeWindow = errors.New("auction is not in its trade window")
	ErrProposalConflict        = errors.New("player is locked by another proposal")
	ErrProposalNotFound        = errors.New("trade proposal not found")
	ErrProposalNotPending      = errors.New("trade proposal is no longer pending")
	ErrTradeLimitReached       = errors.New("team has reached its trade limit")
)
