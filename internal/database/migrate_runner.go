package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"breaksphere/internal/middleware"

	"gorm.io/gorm"
)

// AppliedMigration is a row of the schema_migrations ledger.
type AppliedMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Checksum  string `gorm:"size:16;not null"`
	AppliedAt time.Time
}

// TableName pins the ledger table name.
func (AppliedMigration) TableName() string {
	return "schema_migrations"
}

// Migrator applies and reverts SQL migrations, one transaction per migration.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator returns a Migrator over the embedded migrations.
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, migrations: registry}
}

func (m *Migrator) ensureLedger(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&AppliedMigration{}); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

// Applied returns the ledger in version order.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.ensureLedger(ctx); err != nil {
		return nil, err
	}
	var rows []AppliedMigration
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return rows, nil
}

// Pending returns the migrations not yet in the ledger. It fails when the
// ledger names a version this build does not know or an applied script changed.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[int]Migration, len(m.migrations))
	for _, mig := range m.migrations {
		known[mig.Version] = mig
	}
	done := make(map[int]bool, len(applied))
	for _, row := range applied {
		mig, ok := known[row.Version]
		if !ok {
			return nil, fmt.Errorf("schema_migrations has version %06d unknown to this build", row.Version)
		}
		if row.Checksum != mig.Checksum() {
			return nil, fmt.Errorf("migration %s was edited after it was applied", mig)
		}
		done[row.Version] = true
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for _, mig := range pending {
		middleware.Logger.Info("Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return err
			}
			return tx.Create(&AppliedMigration{
				Version:   mig.Version,
				Name:      mig.Name,
				Checksum:  mig.Checksum(),
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return 0, fmt.Errorf("apply migration %s: %w", mig, err)
		}
	}
	return len(pending), nil
}

// Down reverts the most recently applied migration, which must be version.
func (m *Migrator) Down(ctx context.Context, version int) error {
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("no migrations applied")
	}
	if latest := applied[len(applied)-1].Version; latest != version {
		return fmt.Errorf("migration %06d is not the latest applied (%06d)", version, latest)
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration version %06d not found", version)
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", target.String()))
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.Down).Error; err != nil {
			return fmt.Errorf("rollback %s: %w", target, err)
		}
		return tx.Delete(&AppliedMigration{}, "version = ?", version).Error
	})
}
