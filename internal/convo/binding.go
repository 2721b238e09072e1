package convo

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DocumentKind classifies an uploaded document.
type DocumentKind string

const (
	KindPDF       DocumentKind = "pdf"
	KindTabular   DocumentKind = "tabular"
	KindSlideshow DocumentKind = "slideshow"
)

// Extent is the kind-specific size of a document: page count for PDFs, slide
// count for slideshows, row/column counts for tabular files.
type Extent struct {
	Pages   int
	Slides  int
	Rows    int
	Columns int
}

// Binding associates one uploaded document with one session. At most one
// binding is active per client instance; messages only claim document
// context when the binding's session matches the session they are sent to.
type Binding struct {
	Name           string
	Preview        string
	BoundSessionID string
	Kind           DocumentKind
	Extent         Extent
}

// DescribeExtent renders the kind-specific size for display, e.g. "3 pages"
// or "120 rows, 5 columns". Empty when nothing meaningful is known.
func (b *Binding) DescribeExtent() string {
	switch {
	case b.Kind == KindPDF && b.Extent.Pages > 0:
		return fmt.Sprintf("%d pages", b.Extent.Pages)
	case b.Kind == KindSlideshow && b.Extent.Slides > 0:
		return fmt.Sprintf("%d slides", b.Extent.Slides)
	case b.Kind == KindTabular && (b.Extent.Rows > 0 || b.Extent.Columns > 0):
		return fmt.Sprintf("%d rows, %d columns", b.Extent.Rows, b.Extent.Columns)
	}
	return ""
}

// UploadTypeError rejects a file before any network call.
type UploadTypeError struct {
	Name         string
	DeclaredType string
}

func (e *UploadTypeError) Error() string {
	return fmt.Sprintf("file %q is not an accepted document type (PDF, CSV, XLSX, PPT or PPTX)", e.Name)
}

var allowedMIMETypes = map[string]bool{
	"application/pdf": true,
	"text/csv":        true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":     true,
	"application/vnd.ms-excel":                                              true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.ms-powerpoint":                                         true,
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".csv":  true,
	".xlsx": true,
	".ppt":  true,
	".pptx": true,
}

// ValidateUpload checks a candidate against the document allow-list. The
// declared MIME type is checked first; the filename extension is the
// fallback and must pass when the declared type is unrecognized or absent.
func ValidateUpload(name, declaredType string) error {
	if declaredType != "" && allowedMIMETypes[strings.ToLower(declaredType)] {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	if allowedExtensions[ext] {
		return nil
	}
	return &UploadTypeError{Name: name, DeclaredType: declaredType}
}
