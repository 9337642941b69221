package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fil-demos/synapse-kit/internal/config"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

type LedgerDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// NewLedgerDB opens the ledger database selected by the configuration and creates the schema.
func NewLedgerDB(cfg *config.Config, logger *logger.Logger) (*LedgerDB, error) {
	switch cfg.LedgerDriver {
	case config.LedgerDriverPostgres:
		return NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, logger)
	case config.LedgerDriverSQLite:
		return NewSQLiteDB(cfg.LedgerDBPath, logger)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.LedgerDriver)
	}
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*LedgerDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &LedgerDB{Conn: db, logger: logger}, nil
}

// NewSQLiteDB opens (creating if needed) a single-file ledger.
func NewSQLiteDB(path string, logger *logger.Logger) (*LedgerDB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite ledger %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	// SQLite has a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Debug("Opened SQLite ledger", "path", path)
	return &LedgerDB{Conn: db, logger: logger}, nil
}

func gormConfig() *gorm.Config {
	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	return &gorm.Config{Logger: gormLogger, TranslateError: true}
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Payment{}, &models.Upload{}, &models.Download{}); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}

func (db *LedgerDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *LedgerDB) GetUser(ctx context.Context, address string) (*models.User, error) {
	return findUser(db.Conn.WithContext(ctx), address)
}

func findUser(tx *gorm.DB, address string) (*models.User, error) {
	var user models.User
	if err := tx.Where("address = ?", address).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (db *LedgerDB) CreatePaymentAndCredit(ctx context.Context, user *models.User, payment *models.Payment) (*models.User, error) {
	var credited *models.User
	err := db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Payment{}).Where("tx_hash = ?", payment.TxHash).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to look up payment: %w", err)
		}
		if existing > 0 {
			return models.ErrDuplicatePayment
		}

		current, err := findUser(tx, user.Address)
		switch {
		case errors.Is(err, models.ErrUserNotFound):
			if user.Tier == "" {
				user.Tier = models.TierFree
			}
			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			current = user
		case err != nil:
			return err
		}

		payment.UserID = current.ID
		if err := tx.Create(payment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.ErrDuplicatePayment
			}
			return fmt.Errorf("failed to add payment: %w", err)
		}

		updates := map[string]interface{}{
			"quota_bytes": gorm.Expr("quota_bytes + ?", payment.QuotaBytes),
		}
		if current.Email == "" && user.Email != "" {
			updates["email"] = user.Email
		}
		if err := tx.Model(&models.User{}).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to credit quota: %w", err)
		}

		credited, err = findUser(tx, user.Address)
		return err
	})
	if err != nil {
		return nil, err
	}
	db.logger.Debug("Payment credited", "address", credited.Address, "tx_hash", payment.TxHash, "quota_bytes", credited.QuotaBytes)
	return credited, nil
}

func (db *LedgerDB) SetUserTier(ctx context.Context, address string, tier models.Tier) error {
	res := db.Conn.WithContext(ctx).Model(&models.User{}).Where("address = ?", address).Update("tier", tier)
	if res.Error != nil {
		return fmt.Errorf("failed to update tier: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (db *LedgerDB) AddUpload(ctx context.Context, address string, upload *models.Upload) (*models.User, error) {
	var updated *models.User
	err := db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, address)
		if err != nil {
			return err
		}

		upload.UserID = user.ID
		if err := tx.Create(upload).Error; err != nil {
			return fmt.Errorf("failed to add upload: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("used_bytes", gorm.Expr("used_bytes + ?", upload.SizeBytes)).Error; err != nil {
			return fmt.Errorf("failed to update used bytes: %w", err)
		}

		updated, err = findUser(tx, address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (db *LedgerDB) ReserveBytes(ctx context.Context, address string, size int64) (bool, error) {
	conn := db.Conn.WithContext(ctx)
	res := conn.Model(&models.User{}).
		Where("address = ? AND quota_bytes - used_bytes >= ?", address, size).
		Update("used_bytes", gorm.Expr("used_bytes + ?", size))
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve quota: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	if _, err := findUser(conn, address); err != nil {
		return false, err
	}
	return false, nil
}

func (db *LedgerDB) ReleaseBytes(ctx context.Context, address string, size int64) error {
	res := db.Conn.WithContext(ctx).Model(&models.User{}).
		Where("address = ? AND used_bytes >= ?", address, size).
		Update("used_bytes", gorm.Expr("used_bytes - ?", size))
	if res.Error != nil {
		return fmt.Errorf("failed to release quota: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to release %d bytes for %s: nothing reserved", size, address)
	}
	return nil
}

func (db *LedgerDB) InsertUpload(ctx context.Context, address string, upload *models.Upload) error {
	conn := db.Conn.WithContext(ctx)
	user, err := findUser(conn, address)
	if err != nil {
		return err
	}
	upload.UserID = user.ID
	if err := conn.Create(upload).Error; err != nil {
		return fmt.Errorf("failed to add upload: %w", err)
	}
	return nil
}

func (db *LedgerDB) CountPayments(ctx context.Context, userID int64) (int64, error) {
	var n int64
	if err := db.Conn.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return n, nil
}

func (db *LedgerDB) CountUploads(ctx context.Context, userID int64) (int64, error) {
	var n int64
	if err := db.Conn.WithContext(ctx).Model(&models.Upload{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return n, nil
}

func (db *LedgerDB) AddDownload(ctx context.Context, download *models.Download) error {
	if err := db.Conn.WithContext(ctx).Create(download).Error; err != nil {
		return fmt.Errorf("failed to add download: %w", err)
	}
	return nil
}

func (db *LedgerDB) SumDownloadedSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	row := db.Conn.WithContext(ctx).Model(&models.Download{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("created_at >= ?", since).
		Row()
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return total, nil
}
