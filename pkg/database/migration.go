package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint // migrate to this version instead of latest when non-zero
	Force               int  // force-set this version before migrating when non-zero
	AutoRollback        bool // revert a dirty database to the prior version before failing
}

// MigrationService applies file migrations at startup. The service refuses to
// start on a failed migration; with AutoRollback the schema version is reset
// first so the next boot can retry cleanly.
type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{config: config, logger: logger}
}

type migrationLogger struct {
	ectologger.Logger
}

func (l migrationLogger) Verbose() bool {
	return true
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

func (ms *MigrationService) folder() (string, error) {
	path := ms.config.MigrationFolderPath
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path = filepath.Join(wd, path)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("migration folder %s does not exist: %w", path, err)
	}
	return path, nil
}

func (ms *MigrationService) Migrate(databaseName string, driver database.Driver) error {
	folder, err := ms.folder()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	m.Log = migrationLogger{Logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	previous, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Error("Failed to get current migration version")
		previous = 0
	}

	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	return ms.finish(m, err, previous)
}

func (ms *MigrationService) finish(m *migrate.Migrate, err error, previous uint) error {
	switch {
	case err == nil:
		ms.logger.Info("Successfully applied migrations")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	ms.logger.WithError(err).Error("Migration failed")

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		ms.logger.WithError(verr).Error("Failed to get current migration version")
		return err
	}

	if ms.config.AutoRollback && dirty {
		if previous == 0 && version > 0 {
			previous = version - 1
		}
		ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, previous)
		if forceErr := m.Force(int(previous)); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", previous)
			return forceErr
		}
	}

	// the original error is always returned so startup aborts
	return err
}
