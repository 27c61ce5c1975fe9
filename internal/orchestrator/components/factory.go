package components

import (
	"log/slog"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
	"github.com/remitgrid-transfer-core/internal/domain/journal"
	"github.com/remitgrid-transfer-core/internal/domain/settlement"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/gateway"
	"github.com/remitgrid-transfer-core/internal/metrics"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
	"github.com/remitgrid-transfer-core/internal/platform/persistence"
)

// CreateOrchestrationService creates a new OrchestrationService with all its dependencies.
func CreateOrchestrationService(
	pgDB *persistence.PostgresDB,
	transferRepo transfer.Repository,
	balanceRepo balance.Repository,
	journalRepo journal.Repository,
	settlementRepo settlement.Repository,
	gateways *gateway.Selector,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg *config.Config,
) service.OrchestrationService {
	journalRecorder := NewJournalRecorder(pgDB, transferRepo, journalRepo, logger)
	ledgerManager := NewLedgerManager(balanceRepo, m, &cfg.Orchestrator, logger)
	compensator := NewCompensator(ledgerManager, journalRecorder, settlementRepo, m, &cfg.Orchestrator, logger)

	baseService := service.NewOrchestrationService(
		transferRepo,
		journalRecorder,
		ledgerManager,
		compensator,
		gateways,
		settlementRepo,
		m,
		cfg,
		logger,
	)

	workerPoolService, err := service.NewWorkerPoolOrchestrationService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool orchestration service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
