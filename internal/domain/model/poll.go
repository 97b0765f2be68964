package model

import "time"

// Poll is the question a market resolves against. Created on PollCreated,
// mutated by dispute and resolution events, never deleted.
type Poll struct {
	ChainID           ChainID    `db:"chain_id"`
	Address           string     `db:"address"`
	Creator           string     `db:"creator"`
	Question          string     `db:"question"`
	Rules             string     `db:"rules"`
	Sources           []string   `db:"sources"`
	Category          string     `db:"category"`
	DeadlineEpoch     int64      `db:"deadline_epoch"`
	FinalizationEpoch int64      `db:"finalization_epoch"`
	CheckEpoch        int64      `db:"check_epoch"`
	Status            PollStatus `db:"status"`

	// Dispute sub-state; set before final resolution, never cleared.
	ArbitrationStarted bool       `db:"arbitration_started"`
	DisputedBy         *string    `db:"disputed_by"`
	DisputeReason      *string    `db:"dispute_reason"`
	DisputeStake       int64      `db:"dispute_stake"`
	DisputedAt         *time.Time `db:"disputed_at"`

	Setter           *string    `db:"setter"`
	ResolutionReason *string    `db:"resolution_reason"`
	ResolvedAt       *time.Time `db:"resolved_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p *Poll) ID() string {
	return PollID(p.ChainID, p.Address)
}
