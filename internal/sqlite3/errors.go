package sqlite3

import (
	"errors"
	"fmt"

	sqlitelib "modernc.org/sqlite/lib"
)

var (
	// ErrNoRow is returned by QueryRow when the statement completes
	// without producing a row.
	ErrNoRow = errors.New("sqlite3: no row")

	// ErrConstraint matches any *StepError whose primary result code is
	// SQLITE_CONSTRAINT (UNIQUE, CHECK, FOREIGN KEY, NOT NULL, ...).
	ErrConstraint = errors.New("sqlite3: constraint violation")

	ErrClosed   = errors.New("sqlite3: use of closed handle")
	ErrNoMemory = errors.New("sqlite3: out of memory")
)

// OpenError reports a failure to open a database handle.
type OpenError struct {
	Path string
	Code int
	Msg  string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("sqlite3: open %s: %s", e.Path, e.Msg)
}

// ScriptError reports a failure while running a script through Conn.Exec.
// Msg is SQLite's message, which usually quotes the offending token.
type ScriptError struct {
	Code int
	Msg  string
}

func (e *ScriptError) Error() string {
	return "sqlite3: exec: " + e.Msg
}

// PrepareError reports a failure to compile a statement.
type PrepareError struct {
	SQL  string
	Code int
	Msg  string
}

func (e *PrepareError) Error() string {
	return "sqlite3: prepare: " + e.Msg
}

// BindTypeError reports an argument with no matching bind kind.
type BindTypeError struct {
	Index int
	Value string
}

func (e *BindTypeError) Error() string {
	return fmt.Sprintf("sqlite3: unsupported argument type at index %d: %s", e.Index, e.Value)
}

// ArgumentCountError reports a mismatch between the number of arguments
// supplied and the number of parameters the statement declares.
type ArgumentCountError struct {
	Expected int
	Actual   int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("sqlite3: expected %d arguments, got %d", e.Expected, e.Actual)
}

// StepError reports a step that ended in neither SQLITE_ROW nor
// SQLITE_DONE. Code is the extended result code.
type StepError struct {
	Code int
	Msg  string
}

func (e *StepError) Error() string {
	return "sqlite3: step: " + e.Msg
}

// Is reports constraint violations as ErrConstraint.
func (e *StepError) Is(target error) bool {
	return target == ErrConstraint && e.Code&0xff == sqlitelib.SQLITE_CONSTRAINT
}

// ColumnIndexError reports a column read outside the result row.
type ColumnIndexError struct {
	Index int
	Count int
}

func (e *ColumnIndexError) Error() string {
	return fmt.Sprintf("sqlite3: column %d out of range, count: %d (columns start at 0)", e.Index, e.Count)
}

// Error is a native failure outside the categories above (bind, reset,
// finalize, close).
type Error struct {
	Op   string
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sqlite3: %s: %s", e.Op, e.Msg)
}
