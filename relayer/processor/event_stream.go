package processor

import (
	"context"
	"fmt"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/provider"
)

// EventStream reads a chain's events block by block, starting at a cursor.
// Blocks are only read when Poll is called, and a stream built from a saved
// cursor continues exactly where the previous one stopped.
type EventStream struct {
	src  provider.QueryProvider
	next ibc.Height
}

func NewEventStream(src provider.QueryProvider, next ibc.Height) *EventStream {
	return &EventStream{src: src, next: next}
}

// Cursor is the height of the next block to read.
func (s *EventStream) Cursor() ibc.Height {
	return s.next
}

// Poll returns the events of the blocks from the cursor up to the latest
// height, at most maxBlocksPerPoll of them, and advances the cursor past
// them. Events of blocks read before a failed query are returned with the
// error and the cursor stops at the failed block.
func (s *EventStream) Poll(ctx context.Context) ([]ibc.Event, error) {
	latest, err := s.src.QueryLatestHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest height of %s: %w", s.src.ChainID(), err)
	}

	var events []ibc.Event
	for i := 0; i < maxBlocksPerPoll && s.next.LTE(latest); i++ {
		blockEvents, err := s.src.QueryBlockEvents(ctx, s.next)
		if err != nil {
			return events, fmt.Errorf("failed to query events of %s at %s: %w", s.src.ChainID(), s.next, err)
		}
		events = append(events, blockEvents...)
		s.next = ibc.NextHeight(s.next)
	}
	return events, nil
}

// startHeight picks where a stream without a saved cursor starts: history
// blocks before latest, never below the first block.
func startHeight(latest ibc.Height, history uint64) ibc.Height {
	if latest.RevisionHeight <= history {
		return ibc.NewHeight(latest.RevisionNumber, 1)
	}
	return ibc.NewHeight(latest.RevisionNumber, latest.RevisionHeight-history)
}
