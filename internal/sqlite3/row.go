package sqlite3

import (
	sqlitelib "modernc.org/sqlite/lib"
)

// Row reads columns of the current result row by 0-based index. Columns
// are not self-describing: the caller picks the accessor matching the
// type the query produces, and SQLite converts as it would in C.
//
// The first failed read is kept and returned by Err; later reads return
// zero values.
type Row struct {
	s   *Stmt
	err error
}

func (r *Row) col(i int) bool {
	if r.err != nil {
		return false
	}
	if r.s.h == 0 {
		r.err = ErrClosed
		return false
	}
	if i < 0 || i >= r.s.cols {
		r.err = &ColumnIndexError{Index: i, Count: r.s.cols}
		return false
	}
	return true
}

// Int64 returns column i as a 64-bit integer. NULL reads as 0.
func (r *Row) Int64(i int) int64 {
	if !r.col(i) {
		return 0
	}
	return int64(sqlitelib.Xsqlite3_column_int64(r.s.conn.tls, r.s.h, int32(i)))
}

// Int returns column i as an int. NULL reads as 0.
func (r *Row) Int(i int) int {
	if !r.col(i) {
		return 0
	}
	return int(sqlitelib.Xsqlite3_column_int(r.s.conn.tls, r.s.h, int32(i)))
}

// Float64 returns column i as a float. NULL reads as 0.
func (r *Row) Float64(i int) float64 {
	if !r.col(i) {
		return 0
	}
	return float64(sqlitelib.Xsqlite3_column_double(r.s.conn.tls, r.s.h, int32(i)))
}

// Text returns column i as a string. NULL reads as "".
func (r *Row) Text(i int) string {
	if !r.col(i) {
		return ""
	}
	tls, h := r.s.conn.tls, r.s.h
	// column_text must come before column_bytes so the length matches the
	// UTF-8 form.
	p := sqlitelib.Xsqlite3_column_text(tls, h, int32(i))
	n := sqlitelib.Xsqlite3_column_bytes(tls, h, int32(i))
	return goStringN(p, int(n))
}

// Bool reports whether column i holds the integer 1.
func (r *Row) Bool(i int) bool {
	return r.Int(i) == 1
}

// IsNull reports whether column i is NULL.
func (r *Row) IsNull(i int) bool {
	if !r.col(i) {
		return false
	}
	return sqlitelib.Xsqlite3_column_type(r.s.conn.tls, r.s.h, int32(i)) == sqlitelib.SQLITE_NULL
}

// Err returns the first column read error.
func (r *Row) Err() error { return r.err }
