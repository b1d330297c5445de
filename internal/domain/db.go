package domain

// Database defines lifecycle operations for the read side of the store.
type Database interface {
	Posts() PostRepository
	Users() UserRepository
	Close() error
}
