package sqlite3

import (
	"fmt"

	"modernc.org/libc"
	sqlitelib "modernc.org/sqlite/lib"
)

// sqliteStatic tells SQLite the bound buffer outlives the binding, so it
// is not copied. Bound text lives in the statement's args region until
// the next reset.
const sqliteStatic uintptr = 0

// Stmt is a prepared statement.
type Stmt struct {
	conn   *Conn
	h      uintptr
	sql    string
	cached bool

	params int
	cols   int

	// args owns the buffers of the current bindings.
	args region
}

func newStmt(c *Conn, h uintptr, sql string) *Stmt {
	return &Stmt{
		conn:   c,
		h:      h,
		sql:    sql,
		params: int(sqlitelib.Xsqlite3_bind_parameter_count(c.tls, h)),
		cols:   int(sqlitelib.Xsqlite3_column_count(c.tls, h)),
		args:   region{tls: c.tls},
	}
}

// SQL returns the text the statement was prepared from.
func (s *Stmt) SQL() string { return s.sql }

// ParamCount returns the number of parameters the statement declares.
func (s *Stmt) ParamCount() int { return s.params }

// ColumnCount returns the number of columns in the statement's result rows.
func (s *Stmt) ColumnCount() int { return s.cols }

// ColumnName returns the name of result column i (0-based).
func (s *Stmt) ColumnName(i int) (string, error) {
	if s.h == 0 {
		return "", ErrClosed
	}
	if i < 0 || i >= s.cols {
		return "", &ColumnIndexError{Index: i, Count: s.cols}
	}
	return libc.GoString(sqlitelib.Xsqlite3_column_name(s.conn.tls, s.h, int32(i))), nil
}

// Bind binds v to parameter i. i is 0-based; the leftmost parameter is 0.
// Bindings stay in place until the next Reset.
func (s *Stmt) Bind(i int, v Value) error {
	if s.h == 0 {
		return ErrClosed
	}
	if i < 0 || i >= s.params {
		return &Error{
			Op:   "bind",
			Code: sqlitelib.SQLITE_RANGE,
			Msg:  fmt.Sprintf("parameter %d out of range, count: %d", i, s.params),
		}
	}

	tls := s.conn.tls
	// SQLite numbers parameters from 1.
	idx := int32(i + 1)

	var rc int32
	switch v.kind {
	case KindNull:
		rc = sqlitelib.Xsqlite3_bind_null(tls, s.h, idx)
	case KindBool, KindInt:
		rc = sqlitelib.Xsqlite3_bind_int(tls, s.h, idx, int32(v.i))
	case KindInt64:
		rc = sqlitelib.Xsqlite3_bind_int64(tls, s.h, idx, v.i)
	case KindFloat64:
		rc = sqlitelib.Xsqlite3_bind_double(tls, s.h, idx, v.f)
	case KindText:
		p, err := s.args.cstring(v.s)
		if err != nil {
			return err
		}
		rc = sqlitelib.Xsqlite3_bind_text(tls, s.h, idx, p, int32(len(v.s)), sqliteStatic)
	default:
		return &BindTypeError{Index: i, Value: v.kind.String()}
	}
	if rc != sqlitelib.SQLITE_OK {
		return s.conn.nativeError("bind", rc)
	}
	return nil
}

// Step advances the statement. It reports true when a row is available
// and false when the statement has finished.
func (s *Stmt) Step() (bool, error) {
	if s.h == 0 {
		return false, ErrClosed
	}
	switch rc := sqlitelib.Xsqlite3_step(s.conn.tls, s.h); rc {
	case sqlitelib.SQLITE_ROW:
		return true, nil
	case sqlitelib.SQLITE_DONE:
		return false, nil
	default:
		return false, &StepError{Code: int(rc), Msg: s.conn.errmsg()}
	}
}

// Row returns a view of the current result row. It is only meaningful
// after Step reported true and until the next Step or Reset.
func (s *Stmt) Row() *Row { return &Row{s: s} }

// Reset rewinds the statement, clears its bindings and frees the buffers
// they referenced.
func (s *Stmt) Reset() error {
	if s.h == 0 {
		return ErrClosed
	}
	rc := sqlitelib.Xsqlite3_reset(s.conn.tls, s.h)
	sqlitelib.Xsqlite3_clear_bindings(s.conn.tls, s.h)
	s.args.release()
	if rc != sqlitelib.SQLITE_OK {
		return s.conn.nativeError("reset", rc)
	}
	return nil
}

// BindAndReset binds args in order, runs body, and resets the statement
// whether body returns an error or panics. A reset error is reported only
// when body succeeded.
func (s *Stmt) BindAndReset(args []any, body func() error) (err error) {
	if s.h == 0 {
		return ErrClosed
	}
	if len(args) != s.params {
		return &ArgumentCountError{Expected: s.params, Actual: len(args)}
	}

	defer func() {
		if rerr := s.Reset(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	for i, a := range args {
		v, err := ValueOf(a)
		if err != nil {
			if bt, ok := err.(*BindTypeError); ok {
				bt.Index = i
			}
			return err
		}
		if err := s.Bind(i, v); err != nil {
			return err
		}
	}
	return body()
}

// Exec runs the statement once. Producing a row counts as success, so
// INSERT ... RETURNING can be executed without reading the row.
func (s *Stmt) Exec(args ...any) error {
	return s.BindAndReset(args, func() error {
		_, err := s.Step()
		return err
	})
}

// QueryRow runs s with args and maps the first row with fn. It returns
// ErrNoRow if the statement produces no row and the first column error
// fn caused, if any.
func QueryRow[T any](s *Stmt, args []any, fn func(r *Row) T) (T, error) {
	var out T
	err := s.BindAndReset(args, func() error {
		ok, err := s.Step()
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoRow
		}
		row := s.Row()
		v := fn(row)
		if err := row.Err(); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Query runs s with args and maps every row with fn.
func Query[T any](s *Stmt, args []any, fn func(r *Row) T) ([]T, error) {
	var out []T
	err := s.BindAndReset(args, func() error {
		for {
			ok, err := s.Step()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			row := s.Row()
			v := fn(row)
			if err := row.Err(); err != nil {
				return err
			}
			out = append(out, v)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close finalizes the statement. Only the first call has an effect.
func (s *Stmt) Close() error {
	if s.h == 0 {
		return nil
	}
	err := s.finalize()
	if s.cached {
		if s.conn.cache[s.sql] == s {
			delete(s.conn.cache, s.sql)
		}
	} else {
		delete(s.conn.open, s)
	}
	return err
}

func (s *Stmt) finalize() error {
	if s.h == 0 {
		return nil
	}
	rc := sqlitelib.Xsqlite3_finalize(s.conn.tls, s.h)
	s.h = 0
	s.args.release()
	if rc != sqlitelib.SQLITE_OK {
		return &Error{Op: "finalize", Code: int(rc), Msg: s.conn.errmsg()}
	}
	return nil
}
