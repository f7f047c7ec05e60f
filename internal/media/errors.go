package media

import "errors"

var (
	// ErrFileNotFound indicates the file does not exist or belongs to another user.
	ErrFileNotFound = errors.New("file not found")
	// ErrProviderUnavailable indicates the storage provider is not configured.
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	// ErrFileTooLarge indicates the payload exceeds the configured max upload size.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUpload wraps failures writing bytes to object storage.
	ErrUpload = errors.New("upload to storage failed")
	// ErrRecord wraps failures writing the file record.
	ErrRecord = errors.New("create file record failed")
)
