package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// DefaultContentType is used when content type detection fails.
const DefaultContentType = "application/octet-stream"

// LocalFile is a file read from a billy filesystem.
type LocalFile struct {
	fs          billy.Filesystem
	path        string
	size        int64
	contentType string
}

// OpenFile stats path on fsys and sniffs its content type.
// A nil fsys means the OS filesystem rooted at /.
func OpenFile(fsys billy.Filesystem, path string) (*LocalFile, error) {
	if fsys == nil {
		fsys = osfs.New("/")
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("upload: stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("upload: %q is a directory, not a file", path)
	}

	f := &LocalFile{
		fs:   fsys,
		path: path,
		size: info.Size(),
	}
	f.contentType = f.detectContentType()
	return f, nil
}

// Name implements File.
func (f *LocalFile) Name() string { return filepath.Base(f.path) }

// Path returns the path the file was opened with.
func (f *LocalFile) Path() string { return f.path }

// Size implements File.
func (f *LocalFile) Size() int64 { return f.size }

// ContentType implements File.
func (f *LocalFile) ContentType() string { return f.contentType }

// Open implements File.
func (f *LocalFile) Open() (io.ReadCloser, error) {
	file, err := f.fs.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("upload: open %q: %w", f.path, err)
	}
	return file, nil
}

// detectContentType prefers sniffing the first bytes, then falls back to the extension.
func (f *LocalFile) detectContentType() string {
	file, err := f.fs.Open(f.path)
	if err != nil {
		return contentTypeFromExtension(f.path)
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, _ := io.ReadFull(file, buf)
	if n > 0 {
		// mimetype falls back to octet-stream for unknown binary content;
		// the extension is more useful in that case.
		if mt := mimetype.Detect(buf[:n]); mt != nil && mt.String() != DefaultContentType {
			return mt.String()
		}
	}
	return contentTypeFromExtension(f.path)
}

// MemoryFile is an in-memory File.
type MemoryFile struct {
	name        string
	data        []byte
	contentType string
}

// NewMemoryFile wraps data as a File named name.
func NewMemoryFile(name string, data []byte) *MemoryFile {
	ct := contentTypeFromExtension(name)
	if ct == DefaultContentType && len(data) > 0 {
		ct = mimetype.Detect(data).String()
	}
	return &MemoryFile{name: name, data: data, contentType: ct}
}

// Name implements File.
func (f *MemoryFile) Name() string { return f.name }

// Size implements File.
func (f *MemoryFile) Size() int64 { return int64(len(f.data)) }

// ContentType implements File.
func (f *MemoryFile) ContentType() string { return f.contentType }

// Open implements File.
func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func contentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}
