package file_store

import "context"

// MediaFileStore downloads remote media into local storage.
type MediaFileStore interface {
	// FetchAndStore downloads url and returns the local path it was written to.
	FetchAndStore(ctx context.Context, url string) (path string, err error)
	// Exists reports whether a path returned by FetchAndStore is still present.
	Exists(path string) bool
	// CleanUp removes every stored file.
	CleanUp() error
}

// Getter fetches the raw body of a url.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}
