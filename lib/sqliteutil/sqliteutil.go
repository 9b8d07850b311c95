package sqliteutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

type Config struct {
	// File is a local sqlite path or Memory.
	File string `json:"file"`
	// Url points to a remote libsql server, it takes precedence over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func openRemote(config Config) (*sql.DB, error) {
	url := config.Url
	if config.AuthToken != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "authToken=" + config.AuthToken
	}
	return sql.Open("libsql", url)
}

func openLocal(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if path != Memory {
		err := os.MkdirAll(filepath.Dir(path), 0700)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer, and every connection to
	// ":memory:" would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	if path != Memory {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// OpenDB opens the database described by config and applies schema to it.
// The schema must be idempotent (CREATE ... IF NOT EXISTS).
func OpenDB(ctx context.Context, config Config, schema string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	if config.Url != "" {
		db, err = openRemote(config)
	} else {
		db, err = openLocal(config.File)
	}
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
