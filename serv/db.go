package serv

import (
	"database/sql"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
)

// NewDB opens the MySQL pool and pings it with a retry loop, so the
// service survives a database that is still coming up.
func NewDB(conf *Config, log *zap.SugaredLogger) (*sql.DB, error) {
	var db *sql.DB

	err := retry.Do(
		func() error {
			var err error
			db, err = sql.Open("mysql", conf.DB.ConnString)
			if err != nil {
				return err
			}
			db.SetMaxIdleConns(conf.DB.PoolSize)
			db.SetMaxOpenConns(conf.DB.MaxConnections)
			db.SetConnMaxIdleTime(conf.DB.MaxConnIdleTime)
			db.SetConnMaxLifetime(conf.DB.MaxConnLifeTime)

			if err := db.Ping(); err != nil {
				db.Close() //nolint:errcheck
				return err
			}
			return nil
		},
		retry.Attempts(10),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("database connect (attempt %d): %s", n+1, err)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "database connect")
	}
	return db, nil
}
