package request

import "fmt"

// FileError reports a source image or mask that could not be read or decoded.
type FileError struct {
	Role string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Role, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
