package sqlite3

import (
	"errors"
	"sync/atomic"

	"modernc.org/libc"
	sqlitelib "modernc.org/sqlite/lib"
)

const openFlags = sqlitelib.SQLITE_OPEN_READWRITE |
	sqlitelib.SQLITE_OPEN_CREATE |
	sqlitelib.SQLITE_OPEN_URI |
	sqlitelib.SQLITE_OPEN_NOMUTEX

// Conn is an open SQLite database handle.
type Conn struct {
	tls  *libc.TLS
	db   uintptr
	path string

	cache map[string]*Stmt
	open  map[*Stmt]struct{}

	prepares atomic.Int64
}

// Open opens the database at path. path may be a file name, a file: URI
// or ":memory:". The file is created if it does not exist.
func Open(path string) (*Conn, error) {
	tls := libc.NewTLS()

	var db uintptr
	err := withRegion(tls, func(r *region) error {
		name, err := r.cstring(path)
		if err != nil {
			return err
		}
		slot, err := r.ptrSlot()
		if err != nil {
			return err
		}

		rc := sqlitelib.Xsqlite3_open_v2(tls, name, slot, int32(openFlags), 0)
		db = readPtr(slot)
		if rc != sqlitelib.SQLITE_OK {
			msg := errstr(tls, rc)
			// SQLite hands back a handle even on failure unless it could
			// not allocate one; it carries the message and must be closed.
			if db != 0 {
				msg = libc.GoString(sqlitelib.Xsqlite3_errmsg(tls, db))
				sqlitelib.Xsqlite3_close_v2(tls, db)
				db = 0
			}
			return &OpenError{Path: path, Code: int(rc), Msg: msg}
		}
		return nil
	})
	if err != nil {
		tls.Close()
		return nil, err
	}

	sqlitelib.Xsqlite3_extended_result_codes(tls, db, 1)

	return &Conn{
		tls:   tls,
		db:    db,
		path:  path,
		cache: make(map[string]*Stmt),
		open:  make(map[*Stmt]struct{}),
	}, nil
}

// Path returns the name the connection was opened with.
func (c *Conn) Path() string { return c.path }

// Exec runs a script of zero or more semicolon-separated statements with
// no parameters and no result rows. Use it for pragmas and DDL.
func (c *Conn) Exec(script string) error {
	if c.db == 0 {
		return ErrClosed
	}
	return withRegion(c.tls, func(r *region) error {
		z, err := r.cstring(script)
		if err != nil {
			return err
		}
		errSlot, err := r.ptrSlot()
		if err != nil {
			return err
		}

		rc := sqlitelib.Xsqlite3_exec(c.tls, c.db, z, 0, 0, errSlot)
		if rc != sqlitelib.SQLITE_OK {
			msg := c.errmsg()
			if p := readPtr(errSlot); p != 0 {
				msg = libc.GoString(p)
				sqlitelib.Xsqlite3_free(c.tls, p)
			}
			return &ScriptError{Code: int(rc), Msg: msg}
		}
		return nil
	})
}

// Prepare compiles the first statement in sql. The caller owns the
// returned statement and should Close it; anything left open is
// finalized by Conn.Close.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	s, err := c.prepare(sql, 0)
	if err != nil {
		return nil, err
	}
	c.open[s] = struct{}{}
	return s, nil
}

// PrepareCached returns the cached statement for sql, compiling and
// caching it on first use. The key is the SQL text verbatim. Cached
// statements are finalized by Conn.Close; callers should not Close them.
func (c *Conn) PrepareCached(sql string) (*Stmt, error) {
	if s, ok := c.cache[sql]; ok {
		return s, nil
	}
	s, err := c.prepare(sql, sqlitelib.SQLITE_PREPARE_PERSISTENT)
	if err != nil {
		return nil, err
	}
	s.cached = true
	c.cache[sql] = s
	return s, nil
}

func (c *Conn) prepare(sql string, flags uint32) (*Stmt, error) {
	if c.db == 0 {
		return nil, ErrClosed
	}

	var h uintptr
	err := withRegion(c.tls, func(r *region) error {
		z, err := r.cstring(sql)
		if err != nil {
			return err
		}
		slot, err := r.ptrSlot()
		if err != nil {
			return err
		}

		c.prepares.Add(1)
		// nByte includes the NUL terminator, which lets SQLite skip a copy.
		rc := sqlitelib.Xsqlite3_prepare_v3(c.tls, c.db, z, int32(len(sql)+1), flags, slot, 0)
		if rc != sqlitelib.SQLITE_OK {
			return &PrepareError{SQL: sql, Code: int(rc), Msg: c.errmsg()}
		}
		h = readPtr(slot)
		if h == 0 {
			return &PrepareError{SQL: sql, Msg: "empty statement"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newStmt(c, h, sql), nil
}

// PrepareCount reports how many native prepares the connection has
// issued. It is safe to call from any goroutine.
func (c *Conn) PrepareCount() int64 { return c.prepares.Load() }

// CachedCount reports the number of statements in the cache.
func (c *Conn) CachedCount() int { return len(c.cache) }

// Changes reports the rows modified by the most recent INSERT, UPDATE or
// DELETE.
func (c *Conn) Changes() int64 {
	if c.db == 0 {
		return 0
	}
	return int64(sqlitelib.Xsqlite3_changes(c.tls, c.db))
}

func (c *Conn) LastInsertRowID() int64 {
	if c.db == 0 {
		return 0
	}
	return int64(sqlitelib.Xsqlite3_last_insert_rowid(c.tls, c.db))
}

// InTx reports whether a transaction is open on the connection.
func (c *Conn) InTx() bool {
	return c.db != 0 && sqlitelib.Xsqlite3_get_autocommit(c.tls, c.db) == 0
}

// Close finalizes every cached and open statement, then closes the
// database handle. Finalize failures do not stop the remaining
// statements from being finalized; all failures are joined. Closing an
// already closed connection returns ErrClosed.
func (c *Conn) Close() error {
	if c.db == 0 {
		return ErrClosed
	}

	var errs []error
	for _, s := range c.cache {
		if err := s.finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	clear(c.cache)
	for s := range c.open {
		if err := s.finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	clear(c.open)

	if rc := sqlitelib.Xsqlite3_close_v2(c.tls, c.db); rc != sqlitelib.SQLITE_OK {
		errs = append(errs, &Error{Op: "close", Code: int(rc), Msg: errstr(c.tls, rc)})
	}
	c.db = 0
	c.tls.Close()

	return errors.Join(errs...)
}

func (c *Conn) errmsg() string {
	return libc.GoString(sqlitelib.Xsqlite3_errmsg(c.tls, c.db))
}

func (c *Conn) nativeError(op string, rc int32) error {
	return &Error{Op: op, Code: int(rc), Msg: c.errmsg()}
}

// errstr returns SQLite's generic description of a result code.
func errstr(tls *libc.TLS, rc int32) string {
	return libc.GoString(sqlitelib.Xsqlite3_errstr(tls, rc))
}
