package models

import (
	"strings"
	"time"
)

// FileKind classifies a remote entry by its Synology Office type.
type FileKind string

const (
	KindSpreadsheet FileKind = "spreadsheet" // .osheet
	KindDocument    FileKind = "document"    // .odoc
	KindSlides      FileKind = "slides"      // .oslides
	KindOther       FileKind = "other"
)

// officeExtensions maps Synology Office extensions to their Microsoft
// Office equivalents.
var officeExtensions = map[string]string{
	".osheet":  ".xlsx",
	".odoc":    ".docx",
	".oslides": ".pptx",
}

// RemoteFile is one entry returned by the Drive API listing. It is an
// immutable snapshot for the duration of a run.
type RemoteFile struct {
	FileID       string    `json:"file_id"`
	Name         string    `json:"name"`
	DisplayPath  string    `json:"display_path"`
	ContentType  string    `json:"content_type"` // "dir" or "document"
	Encrypted    bool      `json:"encrypted"`
	Hash         string    `json:"hash"`
	ModifiedTime time.Time `json:"modified_time"`
}

// TeamFolder is a shared team drive root.
type TeamFolder struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

// IsDir reports whether the entry is a folder.
func (f *RemoteFile) IsDir() bool {
	return f.ContentType == "dir"
}

// Kind returns the office document kind derived from the path extension.
func (f *RemoteFile) Kind() FileKind {
	switch {
	case strings.HasSuffix(f.DisplayPath, ".osheet"):
		return KindSpreadsheet
	case strings.HasSuffix(f.DisplayPath, ".odoc"):
		return KindDocument
	case strings.HasSuffix(f.DisplayPath, ".oslides"):
		return KindSlides
	default:
		return KindOther
	}
}

// OfficeExportName converts a Synology Office file name to the name of its
// Microsoft Office counterpart (.osheet -> .xlsx, .odoc -> .docx,
// .oslides -> .pptx). Returns "" when the name carries no office extension.
func OfficeExportName(name string) string {
	for ext, newExt := range officeExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext) + newExt
		}
	}
	return ""
}

// ExportFormat returns the conversion target format for the API call
// ("xlsx", "docx", "pptx"), or "" for non-office files.
func (f *RemoteFile) ExportFormat() string {
	switch f.Kind() {
	case KindSpreadsheet:
		return "xlsx"
	case KindDocument:
		return "docx"
	case KindSlides:
		return "pptx"
	default:
		return ""
	}
}
