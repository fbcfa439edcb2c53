package sqlite

import (
	"os"
	"path/filepath"

	gormsqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fastygo/taskboard/internal/config"
	sqliteRepo "github.com/fastygo/taskboard/repository/sqlite"
)

// Open creates the embedded document store used when STORE_DRIVER=sqlite and
// brings its schema up to date.
func Open(cfg config.SQLiteConfig, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(gormsqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection keeps version checks honest.
	sqlDB.SetMaxOpenConns(1)

	if err := sqliteRepo.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("sqlite store ready", zap.String("path", cfg.Path))
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB, logger *zap.Logger) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Info("sqlite store closed")
	}
	return sqlDB.Close()
}
