package port

// FileSystem defines the interface for local filesystem operations.
// The fetch core only needs path validation, directory creation and
// existence checks; the remaining operations serve reporting and cleanup.
type FileSystem interface {
	// RootDir returns the download root directory
	RootDir() string

	// SafePath resolves a relative path under the root directory.
	// Returns an error if the resolved path escapes the root.
	SafePath(rel string) (string, error)

	// EnsureDir ensures the parent directory for a file path exists
	EnsureDir(filePath string) error

	// EmptyDir removes every entry inside dir, keeping dir itself
	EmptyDir(dir string) error

	// FileExists checks if a file exists
	FileExists(path string) bool

	// FileSize returns the size of a file in bytes
	FileSize(path string) (int64, error)

	// ReadPrefix reads at most n leading bytes of a file
	ReadPrefix(path string, n int) ([]byte, error)

	// HashFile returns the hex-encoded SHA-256 of a file's contents,
	// computed in a streaming fashion
	HashFile(path string) (string, error)

	// DeleteFile removes a file; missing files are not an error
	DeleteFile(path string) error
}
