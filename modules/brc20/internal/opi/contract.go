package opi

import (
	"context"

	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

// OutcomeKind classifies the result of processing one operation.
type OutcomeKind int

const (
	// OutcomeSuccess applies the proposed updates and logs a valid entry.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeInvalid logs an invalid entry with the rejection code. The
	// proposed updates are discarded; only observations are applied.
	OutcomeInvalid
)

// Outcome is the typed result of an operation processor. Transient failures
// are not outcomes; they are returned as errors and abort the block.
type Outcome struct {
	Kind   OutcomeKind
	Code   protocol.ErrorCode
	Reason string

	// Observations record external state discovered while processing, such
	// as a legacy namespace token that caused a rejection. They are applied
	// regardless of the outcome kind.
	Observations []state.Update
}

func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

func Invalid(code protocol.ErrorCode, reason string) Outcome {
	return Outcome{Kind: OutcomeInvalid, Code: code, Reason: reason}
}

func (o Outcome) WithObservations(observations ...state.Update) Outcome {
	o.Observations = append(o.Observations, observations...)
	return o
}

func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// Processor handles one operation tag. Processors never write to the store;
// they propose updates which the block processor applies to the intermediate
// state on success.
type Processor interface {
	// OpTag is the payload "op" value this processor handles, lowercase.
	OpTag() string

	// Process validates the operation against the view and proposes state
	// updates. A non-nil error is transient and aborts the block.
	Process(ctx context.Context, op *entity.Operation, view *state.View) (Outcome, []state.Update, error)
}
