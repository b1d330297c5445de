// Package sqlite3 drives SQLite through its C call interface directly,
// without database/sql or a driver in between.
//
// The C interface is the one exported by modernc.org/sqlite/lib: the
// SQLite amalgamation compiled to Go, where every sqlite3_* function
// takes a *libc.TLS and raw uintptr handles. Memory handed across that
// boundary (SQL text, bound text, out-parameter slots) lives on the C
// heap managed by modernc.org/libc and is owned by a region that is
// released on every exit path of the call that allocated it.
//
// # Ownership
//
// A [Conn] owns one sqlite3* handle and the TLS it is driven with. A
// [Stmt] owns one sqlite3_stmt* handle and belongs to exactly one Conn;
// [Conn.Close] finalizes every statement the connection still tracks
// before closing the handle, so no statement outlives its connection.
//
// Neither type is safe for concurrent use. The intended pattern is a
// single goroutine that owns the connection for its whole lifetime and
// receives work over a channel (see package writer).
//
// # Indexing
//
// Parameter indexes are 0-based everywhere in this package, including
// [Stmt.Bind] and the args slices passed to [Stmt.Exec], [QueryRow] and
// [Query]. SQLite numbers parameters from 1; the translation happens in
// one place, inside Stmt.Bind. Column indexes are 0-based at both layers.
//
// # Statements
//
//	conn, err := sqlite3.Open(":memory:")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	stmt, err := conn.PrepareCached("SELECT ? || ?")
//	if err != nil {
//	    return err
//	}
//	s, err := sqlite3.QueryRow(stmt, []any{"a", "b"}, func(r *sqlite3.Row) string {
//	    return r.Text(0)
//	})
//
// Every execution binds all parameters, steps, and resets the statement
// in a deferred block, so a cached statement is always clean for its
// next use even if the caller's callback fails or panics.
package sqlite3
