package store

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// File is the source and result of driver operations: a named blob with a
// known size and content type.
type File interface {
	Filename() string
	Size() int64
	MIMEType() string
	// Open returns a fresh reader over the whole content.
	Open() (io.ReadCloser, error)
	// CopyTo writes the whole content to a new file at dst.
	CopyTo(dst string) error
}

// OSFile is a File backed by a path on the local filesystem. Its Filename
// may differ from the base name of Path.
type OSFile struct {
	Path string
	Name string
	Len  int64
	Type string
}

// OpenFile describes the regular file at p.
func OpenFile(p string) (*OSFile, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", p)
	}
	return &OSFile{
		Path: p,
		Name: filepath.Base(p),
		Len:  info.Size(),
		Type: detectFileType(p),
	}, nil
}

func (f *OSFile) Filename() string { return f.Name }
func (f *OSFile) Size() int64      { return f.Len }
func (f *OSFile) MIMEType() string { return f.Type }

func (f *OSFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f *OSFile) CopyTo(dst string) error {
	in, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeNewFile(dst, in)
}

// MemFile is an in-memory File.
type MemFile struct {
	Name string
	Type string
	Data []byte
}

// NewMemFile returns a MemFile. An empty mimeType is detected from the name
// and content.
func NewMemFile(name string, data []byte, mimeType string) *MemFile {
	if mimeType == "" {
		mimeType = DetectMIMEType(name, data)
	}
	return &MemFile{Name: name, Type: mimeType, Data: data}
}

func (f *MemFile) Filename() string { return f.Name }
func (f *MemFile) Size() int64      { return int64(len(f.Data)) }
func (f *MemFile) MIMEType() string { return f.Type }

func (f *MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

func (f *MemFile) CopyTo(dst string) error {
	return writeNewFile(dst, bytes.NewReader(f.Data))
}

// DetectMIMEType guesses a content type from the file extension, then from
// the first bytes of content.
func DetectMIMEType(name string, head []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return t
		}
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	if len(head) > 512 {
		head = head[:512]
	}
	return http.DetectContentType(head)
}

func detectFileType(p string) string {
	f, err := os.Open(p)
	if err != nil {
		return DetectMIMEType(p, nil)
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return DetectMIMEType(p, head[:n])
}

func writeNewFile(dst string, r io.Reader) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
