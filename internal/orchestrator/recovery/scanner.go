// Package recovery replays interrupted transfers at startup. The journal's
// newest entry per transfer says exactly where orchestration stopped, and
// every step is idempotent, so resuming is safe after any crash point.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remitgrid-transfer-core/internal/domain/journal"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
)

// nonTerminalStates covers every state a crash can strand a transfer in.
// CREATED is included: the Kafka offset for such a transfer was committed
// only if creation succeeded, and redelivery is not guaranteed after
// consumer-group rebalancing.
var nonTerminalStates = []shared.TransferState{
	shared.TransferStateCreated,
	shared.TransferStateReserved,
	shared.TransferStateSubmitted,
	shared.TransferStateExternalPending,
	shared.TransferStateCompensating,
}

// scanBatchSize bounds a single recovery pass
const scanBatchSize = 100

// Scanner resumes transfers stranded in non-terminal states
type Scanner struct {
	transferRepo transfer.Repository
	journalRepo  journal.Repository
	orchestrator service.OrchestrationService
	logger       *slog.Logger
}

func NewScanner(
	transferRepo transfer.Repository,
	journalRepo journal.Repository,
	orchestrator service.OrchestrationService,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		transferRepo: transferRepo,
		journalRepo:  journalRepo,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Run performs one full recovery scan. It is called once at startup, before
// the consumer starts pulling new work, and keeps paging until no stranded
// transfers remain.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("Starting crash recovery scan")

	recovered := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		transfers, err := s.transferRepo.ListByState(ctx, nonTerminalStates, time.Now(), scanBatchSize)
		if err != nil {
			return fmt.Errorf("failed to list stranded transfers: %w", err)
		}
		if len(transfers) == 0 {
			break
		}

		progressed := 0
		for _, tr := range transfers {
			before := tr.State
			if err := s.recoverTransfer(ctx, tr); err != nil {
				s.logger.Error("Failed to recover transfer",
					"transfer_id", tr.ID.String(),
					"state", string(tr.State),
					"error", err,
				)
				continue
			}
			// ResumeTransfer mutates the state in place; only a state change
			// counts as progress.
			if tr.State != before {
				progressed++
				recovered++
			}
		}

		// A page where nothing moved means the remaining transfers are
		// legitimately waiting on external settlement. Stop here and leave
		// them to the reconciler.
		if progressed == 0 {
			break
		}
	}

	s.logger.Info("Crash recovery scan finished", "recovered", recovered)
	return nil
}

// recoverTransfer cross-checks the transfer row against its newest journal
// entry before resuming. A row whose state ran ahead of its journal would
// mean the durability invariant was broken; recovery refuses to guess and
// logs it instead.
func (s *Scanner) recoverTransfer(ctx context.Context, tr *transfer.Transfer) error {
	last, err := s.journalRepo.GetLast(ctx, tr.ID)
	if err != nil {
		return err
	}

	if last.ToState != tr.State {
		s.logger.Error("Transfer state disagrees with journal, skipping",
			"transfer_id", tr.ID.String(),
			"transfer_state", string(tr.State),
			"journal_state", string(last.ToState),
		)
		return fmt.Errorf("journal mismatch for transfer %s: row %s, journal %s",
			tr.ID.String(), tr.State, last.ToState)
	}

	s.logger.Info("Resuming stranded transfer",
		"transfer_id", tr.ID.String(),
		"state", string(tr.State),
		"journal_seq", last.Seq,
	)
	return s.orchestrator.ResumeTransfer(ctx, tr)
}
