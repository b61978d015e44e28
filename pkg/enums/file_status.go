package enums

import "fmt"

// FileStatus tracks whether an uploaded file has been attached.
type FileStatus string

const (
	FileStatusPending  FileStatus = "pending"
	FileStatusAttached FileStatus = "attached"
)

var validFileStatuss = []FileStatus{
	FileStatusPending,
	FileStatusAttached,
}

// String implements fmt.Stringer.
func (f FileStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FileStatus.
func (f FileStatus) IsValid() bool {
	for _, candidate := range validFileStatuss {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFileStatus converts raw input into a FileStatus.
func ParseFileStatus(value string) (FileStatus, error) {
	for _, candidate := range validFileStatuss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid file status %q", value)
}
