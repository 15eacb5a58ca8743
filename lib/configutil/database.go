package configutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Database points at either a local sqlite file or a remote libsql
// instance. Exactly one of File/Url should be set, Url wins.
type Database struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// Open opens the configured database and applies `schema` to it.
// schema statements are expected to be idempotent (CREATE TABLE IF NOT EXISTS).
func (c Database) Open(schema string) (*sql.DB, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (c Database) open() (*sql.DB, error) {
	if c.Url == "" {
		if c.File == "" {
			return sql.Open("sqlite", ":memory:")
		}
		// writers start with the write lock held and wait for each
		// other instead of failing with SQLITE_BUSY mid-transaction
		query := url.Values{}
		query.Add("_pragma", "busy_timeout(5000)")
		query.Add("_txlock", "immediate")
		return sql.Open("sqlite", fmt.Sprintf("file:%s?%s", c.File, query.Encode()))
	}

	dsn := c.Url
	if c.AuthToken != "" {
		query := url.Values{}
		query.Set("authToken", c.AuthToken)
		dsn = fmt.Sprintf("%s?%s", c.Url, query.Encode())
	}
	return sql.Open("libsql", dsn)
}
