package db

import (
	"fmt"

	"github.com/kasuganosora/amity/server/config"
	dbmysql "github.com/kasuganosora/amity/server/db/mysql"
	dbpostgres "github.com/kasuganosora/amity/server/db/postgres"
	dbsqlite "github.com/kasuganosora/amity/server/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite   = "sqlite"
	ModeMySQL    = "mysql"
	ModePostgres = "postgres"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLife)
	case ModePostgres:
		return dbpostgres.Open(cfg.PostgresDSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
