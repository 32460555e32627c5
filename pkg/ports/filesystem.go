package ports

// FileSystem covers the file operations the generation pipeline needs
// around the output video: creating its directory, probing for a
// partial file and removing it.
type FileSystem interface {
	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// Exists reports whether a file or directory exists.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory.
	Remove(path string) error
}
