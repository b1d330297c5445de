package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"

	"github.com/msomdec/postwriter/internal/domain"
	"github.com/msomdec/postwriter/internal/repository/sqlite/migrations"
	"github.com/msomdec/postwriter/internal/sqlite3"
)

// DB is the read side of the store: a pool of read-only connections to a
// database that the writer owns.
type DB struct {
	SqlDB *sql.DB
}

// Open opens a read-only pool of at most poolSize connections on the
// database at path. The database must already exist; in WAL mode readers
// never block the writer.
func Open(path string, poolSize int) (*DB, error) {
	if poolSize <= 0 {
		poolSize = 1
	}

	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// readOnlyDSN builds a file: URI for path. The path is percent-escaped so
// '?', '#' and '%' in file names do not end up in the query string.
func readOnlyDSN(path string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     path,
		OmitHost: true,
		RawQuery: "mode=ro&_pragma=busy_timeout(10000)",
	}
	return u.String()
}

// Setup prepares the writer connection: it brings the schema up to date.
func Setup(c *sqlite3.Conn) error {
	return migrations.Run(c)
}

func (db *DB) Posts() domain.PostRepository {
	return NewPostRepository(db)
}

func (db *DB) Users() domain.UserRepository {
	return NewUserRepository(db)
}

func (db *DB) Close() error {
	return db.SqlDB.Close()
}
