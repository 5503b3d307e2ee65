package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/roar"
	"github.com/ordersync/backend/internal/infrastructure/unleashed"
)

// TargetClient is the slice of the CRM client one sweep needs.
type TargetClient interface {
	ObjectMapper
	UpsertSalesOrder(ctx context.Context, payload any) (string, error)
}

// TargetClientFactory builds a client bound to one set of credentials. The
// processor resolves credentials fresh on every sweep so operator changes
// take effect without a restart.
type TargetClientFactory func(creds roar.Credentials) TargetClient

// ProcessorConfig holds the sync sweep's tunables.
type ProcessorConfig struct {
	SweepBatch     int
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// SyncProcessor sweeps READY tasks through the full export: auto-map the
// order's sub-entities, assemble the upsert payload, submit it with retries
// and record the resulting identifier mapping.
type SyncProcessor struct {
	cfg       ProcessorConfig
	secrets   pipeline.SecretStore
	newClient TargetClientFactory
	source    CustomerReader
	tasks     pipeline.SyncTaskRepository
	mappings  pipeline.IdentifierMappingRepository
	logger    *zap.Logger
}

// NewSyncProcessor creates a SyncProcessor.
func NewSyncProcessor(
	cfg ProcessorConfig,
	secrets pipeline.SecretStore,
	newClient TargetClientFactory,
	source CustomerReader,
	tasks pipeline.SyncTaskRepository,
	mappings pipeline.IdentifierMappingRepository,
	logger *zap.Logger,
) *SyncProcessor {
	if cfg.SweepBatch == 0 {
		cfg.SweepBatch = 50
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncProcessor{
		cfg:       cfg,
		secrets:   secrets,
		newClient: newClient,
		source:    source,
		tasks:     tasks,
		mappings:  mappings,
		logger:    logger.Named("processor"),
	}
}

// SweepReport summarizes one sync sweep.
type SweepReport struct {
	Synced         int `json:"synced"`
	Failed         int `json:"failed"`
	SkippedEmpty   int `json:"skippedEmpty"`
	SkippedClaimed int `json:"skippedClaimed"`
}

// Run executes one sweep. Credentials are resolved at the start; a sweep
// without configured credentials returns ErrCredentialsMissing and touches no
// tasks. Each task is claimed with a conditional READY to PROCESSING
// transition, so overlapping sweeps never process the same task twice. A
// failing task is marked SYNC_FAILED and does not stop the sweep.
func (p *SyncProcessor) Run(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	creds, err := roar.LoadCredentials(ctx, p.secrets)
	if err != nil {
		return report, err
	}
	client := p.newClient(creds)
	mapper := NewAutoMapper(client, p.source, p.logger)

	ready, err := p.tasks.FindReady(ctx, p.cfg.SweepBatch)
	if err != nil {
		return report, fmt.Errorf("failed to load ready tasks: %w", err)
	}

	for _, task := range ready {
		if task.Payload == "" || task.Payload == pipeline.EmptyPayload {
			report.SkippedEmpty++
			continue
		}

		claimed, err := p.tasks.TransitionStatus(ctx, task.Task.ID, pipeline.TaskStatusReady, pipeline.TaskStatusProcessing)
		if err != nil {
			return report, fmt.Errorf("failed to claim task %d: %w", task.Task.ID, err)
		}
		if !claimed {
			report.SkippedClaimed++
			continue
		}

		if err := p.processTask(ctx, client, mapper, &task); err != nil {
			report.Failed++
			if markErr := p.tasks.UpdateStatus(ctx, task.Task.ID, pipeline.TaskStatusSyncFailed, err.Error()); markErr != nil {
				p.logger.Error("failed to mark task SYNC_FAILED",
					zap.Uint("taskId", task.Task.ID),
					zap.Error(markErr),
				)
			}
			p.logger.Error("task sync failed",
				zap.Uint("taskId", task.Task.ID),
				zap.String("sourceGuid", task.Task.SourceGuid),
				zap.Error(err),
			)
			continue
		}

		report.Synced++
		if err := p.tasks.UpdateStatus(ctx, task.Task.ID, pipeline.TaskStatusDone, ""); err != nil {
			p.logger.Error("failed to mark task DONE",
				zap.Uint("taskId", task.Task.ID),
				zap.Error(err),
			)
		}
	}

	p.logger.Info("sweep complete",
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed),
		zap.Int("skippedEmpty", report.SkippedEmpty),
		zap.Int("skippedClaimed", report.SkippedClaimed),
	)
	return report, nil
}

// processTask exports one claimed task.
func (p *SyncProcessor) processTask(ctx context.Context, client TargetClient, mapper *AutoMapper, task *pipeline.ReadyTask) error {
	var order unleashed.SalesOrder
	if err := json.Unmarshal([]byte(task.Payload), &order); err != nil {
		return fmt.Errorf("staged payload unparseable: %w", err)
	}

	mappings, err := mapper.CreateAutoMapping(ctx, &order)
	if err != nil {
		return err
	}

	payload := BuildSalesOrderPayload(&order, mappings)

	targetID, err := retryOperation(ctx, p.logger, "upsertSalesOrder",
		p.cfg.RetryAttempts, p.cfg.RetryBaseDelay,
		func() (string, error) {
			return client.UpsertSalesOrder(ctx, payload)
		})
	if err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrUpsertFailed, err)
	}

	if err := p.mappings.Record(ctx, pipeline.SourceUnleashed, order.Guid, pipeline.TargetRoar, targetID); err != nil {
		return fmt.Errorf("failed to record identifier mapping: %w", err)
	}

	p.logger.Info("task synced",
		zap.Uint("taskId", task.Task.ID),
		zap.String("sourceGuid", order.Guid),
		zap.String("targetId", targetID),
	)
	return nil
}
