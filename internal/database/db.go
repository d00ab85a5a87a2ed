// Package database opens the MySQL connection pool and runs the
// schema migrations at startup.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open builds the DSN, opens the pool and pings it with a short
// timeout so a bad address fails at boot rather than on the first
// request. parseTime=true maps DATETIME columns onto time.Time and
// loc=UTC keeps every timestamp in UTC end to end, matching the
// UTC_TIMESTAMP() writes in the repositories.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	creds := user
	if pass != "" {
		creds += ":" + pass
	}
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		creds, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
