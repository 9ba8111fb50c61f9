package app

import (
	"fmt"

	documentsRepository "github.com/allisson/caresync/internal/documents/repository"
	documentsUsecase "github.com/allisson/caresync/internal/documents/usecase"
)

// DocumentRepository returns the encrypted document repository instance.
func (c *Container) DocumentRepository() (documentsUsecase.DocumentRepository, error) {
	c.documentRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["documentRepo"] = fmt.Errorf("failed to get database for document repository: %w", err)
			return
		}

		// Select the appropriate repository based on the database driver
		switch c.config.DBDriver {
		case "mysql":
			c.documentRepo = documentsRepository.NewMySQLDocumentRepository(db)
		case "postgres":
			c.documentRepo = documentsRepository.NewPostgreSQLDocumentRepository(db)
		default:
			c.initErrors["documentRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["documentRepo"]; exists {
		return nil, storedErr
	}
	return c.documentRepo, nil
}

// DocumentStore returns the encrypted document store with all its dependencies.
func (c *Container) DocumentStore() (documentsUsecase.DocumentStore, error) {
	c.documentStoreInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["documentStore"] = fmt.Errorf("failed to get tx manager for document store: %w", err)
			return
		}

		repo, err := c.DocumentRepository()
		if err != nil {
			c.initErrors["documentStore"] = fmt.Errorf("failed to get repository for document store: %w", err)
			return
		}

		sessions, err := c.SessionManager()
		if err != nil {
			c.initErrors["documentStore"] = fmt.Errorf("failed to get session manager for document store: %w", err)
			return
		}

		aeadManager, err := c.AEADManager()
		if err != nil {
			c.initErrors["documentStore"] = fmt.Errorf("failed to get aead manager for document store: %w", err)
			return
		}

		algorithm, err := c.aeadAlgorithm()
		if err != nil {
			c.initErrors["documentStore"] = err
			return
		}

		deviceID, err := c.DeviceID()
		if err != nil {
			c.initErrors["documentStore"] = fmt.Errorf("failed to get device id for document store: %w", err)
			return
		}

		store := documentsUsecase.NewDocumentStore(
			txManager,
			repo,
			sessions,
			aeadManager,
			algorithm,
			deviceID,
			c.AuditSink(),
			c.Logger(),
		)

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["documentStore"] = fmt.Errorf("failed to get business metrics for document store: %w", err)
			return
		}
		if businessMetrics != nil {
			store = documentsUsecase.NewDocumentStoreWithMetrics(store, businessMetrics)
		}

		c.documentStore = store
	})
	if storedErr, exists := c.initErrors["documentStore"]; exists {
		return nil, storedErr
	}
	return c.documentStore, nil
}
