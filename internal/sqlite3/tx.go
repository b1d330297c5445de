package sqlite3

import (
	"fmt"
	"log/slog"
)

// TxMode selects when a transaction takes its locks.
type TxMode uint8

const (
	// Deferred takes no lock until the first read or write.
	Deferred TxMode = iota
	// Immediate takes the write lock at BEGIN. Use it for every
	// transaction that writes, so lock acquisition cannot fail halfway.
	Immediate
	// Exclusive also keeps readers on other connections out (outside
	// WAL mode).
	Exclusive
)

func (m TxMode) String() string {
	switch m {
	case Deferred:
		return "DEFERRED"
	case Immediate:
		return "IMMEDIATE"
	case Exclusive:
		return "EXCLUSIVE"
	}
	return fmt.Sprintf("TxMode(%d)", m)
}

// Transact runs fn inside a transaction started with BEGIN <mode>. It
// commits when fn returns nil. When fn returns an error or panics the
// transaction is rolled back and the original error or panic is passed
// on unchanged. A failed rollback is logged, never returned in place of
// the original cause.
func (c *Conn) Transact(mode TxMode, fn func(c *Conn) error) (err error) {
	if mode > Exclusive {
		return fmt.Errorf("sqlite3: invalid transaction mode %s", mode)
	}

	begin, err := c.PrepareCached("BEGIN " + mode.String())
	if err != nil {
		return err
	}
	if err := begin.Exec(); err != nil {
		return fmt.Errorf("begin %s: %w", mode, err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		p := recover()
		cause := any(err)
		if p != nil {
			cause = p
		}
		if rbErr := c.rollback(); rbErr != nil {
			slog.Warn("rollback failed", "error", rbErr, "cause", cause)
		}
		if p != nil {
			panic(p)
		}
	}()

	if err := fn(c); err != nil {
		return err
	}

	commit, err := c.PrepareCached("COMMIT")
	if err != nil {
		return err
	}
	if err := commit.Exec(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	done = true
	return nil
}

func (c *Conn) rollback() error {
	// SQLite may already have rolled back on its own (SQLITE_FULL,
	// SQLITE_IOERR, SQLITE_NOMEM, ...).
	if !c.InTx() {
		return nil
	}
	stmt, err := c.PrepareCached("ROLLBACK")
	if err != nil {
		return err
	}
	return stmt.Exec()
}
