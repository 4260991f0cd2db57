package stowdav

import (
	"time"
)

// EntryMode tells files and directories apart.
type EntryMode int

const (
	ModeFile EntryMode = iota
	ModeDir
)

func (m EntryMode) IsDir() bool {
	return m == ModeDir
}

func (m EntryMode) String() string {
	if m == ModeDir {
		return "dir"
	}
	return "file"
}

// OpWrite carries the parameters of a single write operation. The target path
// is given to Operator.Writer and the body to Writer.Write.
type OpWrite struct {
	// ContentLength is the declared body length. Nil means len(body).
	ContentLength *int64
	ContentType   string
	// ContentDisposition is sent verbatim when set.
	ContentDisposition string
	Append             bool
}

// WithContentLength returns a copy of op with ContentLength set to n.
func (op OpWrite) WithContentLength(n int64) OpWrite {
	op.ContentLength = &n
	return op
}

// OpRead selects a byte range. Length 0 reads to the end.
type OpRead struct {
	Offset int64
	Length int64
}

type Metadata struct {
	Path         string
	Mode         EntryMode
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

func (m Metadata) IsDir() bool {
	return m.Mode.IsDir()
}

// Entry is a single listing result. Directory paths end with "/".
type Entry struct {
	Path     string
	Metadata Metadata
}

// Capability describes which operations an accessor supports.
type Capability struct {
	Name      string
	Read      bool
	Write     bool
	Append    bool
	List      bool
	Stat      bool
	Delete    bool
	CreateDir bool
}
