package sqlconnect

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"qiyana_splitledger/internal/config"
	"qiyana_splitledger/internal/repositories/ledgerstore"
	"qiyana_splitledger/pkg/utils"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var DB *sql.DB

// Dialect is the SQL flavour of the open connection.
var Dialect ledgerstore.Dialect

// DSN builds the driver name, connection string and dialect for cfg.
func DSN(cfg config.DB) (string, string, ledgerstore.Dialect, error) {
	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = cfg.Host + ":" + cfg.Port
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		return "mysql", mc.FormatDSN(), ledgerstore.MySQL, nil
	case "pgx":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   cfg.Host + ":" + cfg.Port,
			Path:   "/" + cfg.Name,
		}
		return "pgx", u.String(), ledgerstore.Postgres, nil
	default:
		return "", "", ledgerstore.MySQL, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

func ConnectDb(cfg config.DB) error {
	if DB != nil {
		return nil
	}

	driver, dsn, dialect, err := DSN(cfg)
	if err != nil {
		return err
	}

	utils.Logger.Infof("Connecting to %s at %s:%s...", dialect, cfg.Host, cfg.Port)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open DB connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping DB: %w", err)
	}

	DB = db
	Dialect = dialect
	utils.Logger.Infof("✅ Connected to %s", dialect)
	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}
