package common

// Key namespaces of the destination store.
const (
	LibraryPrefix     = "library/originals"
	UserUploadsPrefix = "users"
)

// DefaultGenre is the genre given to objects without an accepted metadata match.
const DefaultGenre = "unknown"
