package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Database holds the database connection
type Database struct {
	DB *gorm.DB
}

// Open connects to the configured driver and migrates the schema
func Open(driver, dsn string) (*Database, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite 只允许单个写连接，内存库时多连接还会各自看到不同的库
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Database{DB: db}, nil
}

// Migrate creates or updates the tables used by the sync engine
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ApplicationModel{}, &EmailLinkModel{}, &SyncLogModel{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return backfillCompanyKeys(db)
}

// backfillCompanyKeys 为早于 company_key 列写入的记录补齐键
func backfillCompanyKeys(db *gorm.DB) error {
	var rows []ApplicationModel
	if err := db.Select("id", "company").Where("company_key = ?", "").Find(&rows).Error; err != nil {
		return fmt.Errorf("backfill company keys: %w", err)
	}
	for _, row := range rows {
		err := db.Model(&ApplicationModel{}).
			Where("id = ?", row.ID).
			UpdateColumn("company_key", companyKey(row.Company)).Error
		if err != nil {
			return fmt.Errorf("backfill company keys: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func (d *Database) Applications() *GormApplicationRepository {
	return NewGormApplicationRepository(d.DB)
}

func (d *Database) EmailLinks() *GormEmailLinkRepository {
	return NewGormEmailLinkRepository(d.DB)
}

func (d *Database) SyncLog() *GormSyncLogRepository {
	return NewGormSyncLogRepository(d.DB)
}
