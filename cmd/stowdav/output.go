package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sagarc03/stowdav"
)

// PutResult describes one upload.
type PutResult struct {
	LocalPath   string
	RemotePath  string
	ContentType string
	Size        int64
	Appended    bool
}

// GetResult describes one download. LocalPath "-" means stdout.
type GetResult struct {
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path"`
	Size       int64  `json:"size_bytes"`
}

// DeleteResult describes one removal.
type DeleteResult struct {
	Path string
	Err  error
}

// Formatter formats command results for output.
type Formatter interface {
	FormatPut(w io.Writer, result PutResult) error
	FormatGet(w io.Writer, result GetResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, dir string, entries []stowdav.Entry) error
	FormatError(w io.Writer, err error) error
}

// newFormatter returns the formatter selected by the --json and --quiet flags.
func newFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

func (f *HumanFormatter) FormatPut(w io.Writer, r PutResult) error {
	if f.Quiet {
		return nil
	}
	verb := "Uploaded"
	if r.Appended {
		verb = "Appended"
	}
	_, _ = fmt.Fprintf(w, "%s: %s -> %s (%s)\n", verb, r.LocalPath, r.RemotePath, formatSize(r.Size))
	if r.ContentType != "" {
		_, _ = fmt.Fprintf(w, "  Content-Type: %s\n", r.ContentType)
	}
	return nil
}

func (f *HumanFormatter) FormatGet(w io.Writer, r GetResult) error {
	if f.Quiet {
		return nil
	}
	if r.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", r.RemotePath, formatSize(r.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", r.RemotePath, r.LocalPath, formatSize(r.Size))
	}
	return nil
}

func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.Path, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.Path)
		}
	}
	return nil
}

// FormatList prints a table of entries. Directories show "-" for size.
func (f *HumanFormatter) FormatList(w io.Writer, dir string, entries []stowdav.Entry) error {
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(w, "No entries in %s\n", dir)
		return nil
	}

	maxPathLen := 4 // "PATH"
	for _, e := range entries {
		maxPathLen = max(maxPathLen, len(e.Path))
	}
	maxPathLen = min(maxPathLen, 60)

	_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n", maxPathLen, "PATH", "SIZE", "UPDATED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", maxPathLen), strings.Repeat("-", 10), strings.Repeat("-", 19))

	var total int64
	for _, e := range entries {
		path := e.Path
		if len(path) > maxPathLen {
			path = path[:maxPathLen-3] + "..."
		}

		size := "-"
		if !e.Metadata.IsDir() {
			size = formatSize(e.Metadata.Size)
			total += e.Metadata.Size
		}

		updated := ""
		if !e.Metadata.LastModified.IsZero() {
			updated = e.Metadata.LastModified.Format(time.DateTime)
		}

		_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n", maxPathLen, path, size, updated)
	}

	_, _ = fmt.Fprintf(w, "\n%d entry(s) (%s total)\n", len(entries), formatSize(total))
	return nil
}

func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatPut(w io.Writer, r PutResult) error {
	return writeJSON(w, struct {
		LocalPath   string `json:"local_path"`
		RemotePath  string `json:"remote_path"`
		ContentType string `json:"content_type,omitempty"`
		Size        int64  `json:"size_bytes"`
		Appended    bool   `json:"appended,omitempty"`
	}{r.LocalPath, r.RemotePath, r.ContentType, r.Size, r.Appended})
}

func (f *JSONFormatter) FormatGet(w io.Writer, r GetResult) error {
	return writeJSON(w, r)
}

func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type jsonResult struct {
		Path    string `json:"path"`
		Deleted bool   `json:"deleted"`
		Error   string `json:"error,omitempty"`
	}

	output := struct {
		Results []jsonResult `json:"results"`
	}{
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		jr := jsonResult{Path: r.Path, Deleted: r.Err == nil}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		output.Results[i] = jr
	}

	return writeJSON(w, output)
}

func (f *JSONFormatter) FormatList(w io.Writer, dir string, entries []stowdav.Entry) error {
	type jsonEntry struct {
		Path         string     `json:"path"`
		Mode         string     `json:"mode"`
		Size         int64      `json:"size_bytes"`
		ETag         string     `json:"etag,omitempty"`
		ContentType  string     `json:"content_type,omitempty"`
		LastModified *time.Time `json:"last_modified,omitempty"`
	}

	output := struct {
		Dir     string      `json:"dir"`
		Entries []jsonEntry `json:"entries"`
	}{
		Dir:     dir,
		Entries: make([]jsonEntry, len(entries)),
	}

	for i, e := range entries {
		je := jsonEntry{
			Path:        e.Path,
			Mode:        e.Metadata.Mode.String(),
			Size:        e.Metadata.Size,
			ETag:        e.Metadata.ETag,
			ContentType: e.Metadata.ContentType,
		}
		if !e.Metadata.LastModified.IsZero() {
			t := e.Metadata.LastModified.UTC()
			je.LastModified = &t
		}
		output.Entries[i] = je
	}

	return writeJSON(w, output)
}

func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return writeJSON(w, struct {
		Error string `json:"error"`
	}{err.Error()})
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
