package app

import (
	"fmt"

	replicationRepository "github.com/allisson/caresync/internal/replication/repository"
	replicationService "github.com/allisson/caresync/internal/replication/service"
	replicationUsecase "github.com/allisson/caresync/internal/replication/usecase"
)

// CheckpointRepository returns the sync checkpoint repository instance.
func (c *Container) CheckpointRepository() (replicationUsecase.CheckpointRepository, error) {
	c.checkpointRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["checkpointRepo"] = fmt.Errorf("failed to get database for checkpoint repository: %w", err)
			return
		}

		// Select the appropriate repository based on the database driver
		switch c.config.DBDriver {
		case "mysql":
			c.checkpointRepo = replicationRepository.NewMySQLCheckpointRepository(db)
		case "postgres":
			c.checkpointRepo = replicationRepository.NewPostgreSQLCheckpointRepository(db)
		default:
			c.initErrors["checkpointRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["checkpointRepo"]; exists {
		return nil, storedErr
	}
	return c.checkpointRepo, nil
}

// Merger returns the field-level document merger configured from the merge policy.
func (c *Container) Merger() *replicationService.Merger {
	c.mergerInit.Do(func() {
		c.merger = replicationService.NewMerger(replicationService.FieldRules{
			StageOrder:          c.config.GetStageOrder(),
			SeverityOrder:       c.config.GetSeverityOrder(),
			StageFields:         c.config.GetStageFields(),
			SeverityFields:      c.config.GetSeverityFields(),
			StatusFields:        c.config.GetStatusFields(),
			ReferenceListFields: c.config.GetReferenceListFields(),
		})
	})
	return c.merger
}

// RemoteClients returns one HTTP client per configured sync peer.
func (c *Container) RemoteClients() []replicationUsecase.RemoteClient {
	c.remoteClientsInit.Do(func() {
		peers := c.config.GetSyncPeers()
		clients := make([]replicationUsecase.RemoteClient, 0, len(peers))
		for _, peer := range peers {
			clients = append(clients, replicationService.NewHTTPRemoteClient(
				replicationService.HTTPRemoteClientConfig{
					BaseURL:        peer,
					RequestTimeout: c.config.SyncRequestTimeout,
					RequestsPerSec: c.config.SyncRequestsPerSec,
					Burst:          c.config.SyncBurst,
				},
				c.Logger(),
			))
		}
		c.remoteClients = clients
	})
	return c.remoteClients
}

// SyncEngine returns the replication engine with all its dependencies.
func (c *Container) SyncEngine() (replicationUsecase.SyncEngine, error) {
	c.syncEngineInit.Do(func() {
		checkpoints, err := c.CheckpointRepository()
		if err != nil {
			c.initErrors["syncEngine"] = fmt.Errorf("failed to get checkpoint repository for sync engine: %w", err)
			return
		}

		store, err := c.DocumentStore()
		if err != nil {
			c.initErrors["syncEngine"] = fmt.Errorf("failed to get document store for sync engine: %w", err)
			return
		}

		deviceID, err := c.DeviceID()
		if err != nil {
			c.initErrors["syncEngine"] = fmt.Errorf("failed to get device id for sync engine: %w", err)
			return
		}

		engine := replicationUsecase.NewSyncEngine(
			checkpoints,
			store,
			c.Merger(),
			c.RemoteClients(),
			c.AuditSink(),
			c.Logger(),
			deviceID,
			c.config.SyncPageSize,
		)

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["syncEngine"] = fmt.Errorf("failed to get business metrics for sync engine: %w", err)
			return
		}
		if businessMetrics != nil {
			engine = replicationUsecase.NewSyncEngineWithMetrics(engine, businessMetrics)
		}

		c.syncEngine = engine
	})
	if storedErr, exists := c.initErrors["syncEngine"]; exists {
		return nil, storedErr
	}
	return c.syncEngine, nil
}
