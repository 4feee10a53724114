package runstore

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	devenv "finscraper/dev/env"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Database is the store's configuration, either a local sqlite file or a remote libsql url.
type Database struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

func openSqlite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	// sqlite allows a single writer, one connection avoids SQLITE_BUSY under concurrent runs
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

// OpenDB opens the configured database and applies the schema.
func (config Database) OpenDB() (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch {
	case config.Url != "":
		values := url.Values{}
		if config.AuthToken != "" {
			values.Add("authToken", config.AuthToken)
		}
		dsn := config.Url
		if len(values) > 0 {
			dsn += "?" + values.Encode()
		}
		db, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	case config.File != "":
		path, err := devenv.ResolvePath(config.File)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		db, err = openSqlite(path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, wrapOpenDB(fmt.Errorf("neither a file nor a url was specified"))
	}

	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
