package transport

import "fmt"

// FetchError indicates a read call (thread list, message page) failed.
// Callers surface a retry affordance and leave local state untouched.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UploadError indicates an attachment upload failed. The composer keeps the
// selected file and typed text so the user can retry without re-selecting.
type UploadError struct {
	Status int
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload attachment: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SendError indicates a message send failed after any upload succeeded. The
// composer keeps text and the cached upload result so a retry skips the upload.
type SendError struct {
	Status int
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
