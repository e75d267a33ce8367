package store

import (
	"encoding/hex"
	"fmt"
	"path"
)

// FileHandle identifies a stored blob. It is created by Driver.Store once
// the content is in place and is never modified afterwards. Callers persist
// it (it marshals to JSON) and pass it back to Retrieve and Delete.
type FileHandle struct {
	JobID    int64  `json:"job_id"`
	Backend  string `json:"backend"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"sha256"`
	MIMEType string `json:"mimetype"`
}

// NewFileHandle builds a handle for src. logicalPath must already be
// normalized.
func NewFileHandle(jobID int64, backend string, src File, logicalPath, checksum string) *FileHandle {
	return &FileHandle{
		JobID:    jobID,
		Backend:  backend,
		Filename: src.Filename(),
		Path:     logicalPath,
		Size:     src.Size(),
		Checksum: checksum,
		MIMEType: src.MIMEType(),
	}
}

// Key returns the slash separated location of the content relative to the
// backend root.
func (h *FileHandle) Key() string {
	if h.Path == "" {
		return h.Filename
	}
	return path.Join(h.Path, h.Filename)
}

// RetrievalTarget returns the default restore target for h.
func (h *FileHandle) RetrievalTarget() RestoreTarget {
	return RestoreTarget{
		JobID:    h.JobID,
		Path:     h.Path,
		Filename: h.Filename,
		MIMEType: h.MIMEType,
		Size:     h.Size,
	}
}

// Validate checks a handle that was decoded from caller storage.
func (h *FileHandle) Validate() error {
	if h == nil {
		return fmt.Errorf("file handle is nil")
	}
	if h.Backend == "" {
		return fmt.Errorf("file handle has no backend")
	}
	if err := ValidateFilename(h.Filename); err != nil {
		return err
	}
	normalized, err := NormalizePath(h.Path)
	if err != nil {
		return err
	}
	if normalized != h.Path {
		return fmt.Errorf("file handle path %q is not normalized", h.Path)
	}
	if h.Size < 0 {
		return fmt.Errorf("file handle has negative size %d", h.Size)
	}
	if b, err := hex.DecodeString(h.Checksum); err != nil || len(b) != 32 {
		return fmt.Errorf("file handle has invalid sha256 checksum %q", h.Checksum)
	}
	return nil
}

func (h *FileHandle) String() string {
	return fmt.Sprintf("%s:%s (job %d, %d bytes)", h.Backend, h.Key(), h.JobID, h.Size)
}
