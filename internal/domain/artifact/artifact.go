package artifact

import (
	"path/filepath"
	"strings"
)

// ExtensionSet is a closed, ordered set of lower-case extensions without the
// leading dot. Order matters for mask lookup: the first match wins.
type ExtensionSet []string

var (
	EditExtensions  = ExtensionSet{"xcf"}
	MaskExtensions  = ExtensionSet{"png"}
	ImageExtensions = ExtensionSet{"png", "jpg", "jpeg", "bmp", "gif", "tiff"}
)

// MaskMarker identifies derived mask files inside the image directory.
const MaskMarker = "_mask"

// Contains reports whether ext (with or without a leading dot) is in the set,
// ignoring case.
func (s ExtensionSet) Contains(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}
	for _, e := range s {
		if e == ext {
			return true
		}
	}
	return false
}

// Allows reports whether filename carries an extension from the set.
func (s ExtensionSet) Allows(filename string) bool {
	return s.Contains(Ext(filename))
}

func (s ExtensionSet) String() string {
	return strings.Join(s, ", ")
}

// Ext returns the lower-cased extension of filename without the dot.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Base strips the final extension from filename.
func Base(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// Eligible reports whether a directory entry name belongs to the image set.
func Eligible(name string) bool {
	if strings.HasPrefix(name, ".") || strings.Contains(name, MaskMarker) {
		return false
	}
	return ImageExtensions.Allows(name)
}

// EditName is the edit-file name derived from an original filename.
func EditName(original string) string {
	return Base(original) + "." + EditExtensions[0]
}

// MaskName is the mask name for original with the given mask extension.
func MaskName(original, ext string) string {
	return Base(original) + MaskMarker + "." + strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MaskCandidates lists possible mask names for original in lookup order.
func MaskCandidates(original string) []string {
	out := make([]string, len(MaskExtensions))
	for i, ext := range MaskExtensions {
		out[i] = MaskName(original, ext)
	}
	return out
}

// Status is the completion state of one assigned image. It is computed from
// the file system on each request.
type Status struct {
	Original        string `json:"original"`
	Base            string `json:"base_filename"`
	OriginalPresent bool   `json:"original_present"`
	EditFilePresent bool   `json:"xcf_exists"`
	MaskPresent     bool   `json:"mask_exists"`
	MaskName        string `json:"mask_name,omitempty"`
}

type Bucket string

const (
	BucketCompleted Bucket = "completed"
	BucketEditOnly  Bucket = "edit_only"
	BucketMaskOnly  Bucket = "mask_only"
	BucketPending   Bucket = "pending"
)

// Bucket classifies s by which of the two artifacts are present.
func (s Status) Bucket() Bucket {
	switch {
	case s.EditFilePresent && s.MaskPresent:
		return BucketCompleted
	case s.EditFilePresent:
		return BucketEditOnly
	case s.MaskPresent:
		return BucketMaskOnly
	default:
		return BucketPending
	}
}

// Summary counts a worker's images per bucket. The four counts sum to Total.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	EditOnly  int `json:"edit_only"`
	MaskOnly  int `json:"mask_only"`
	Pending   int `json:"pending"`
}

func Summarize(statuses []Status) Summary {
	sum := Summary{Total: len(statuses)}
	for _, s := range statuses {
		switch s.Bucket() {
		case BucketCompleted:
			sum.Completed++
		case BucketEditOnly:
			sum.EditOnly++
		case BucketMaskOnly:
			sum.MaskOnly++
		default:
			sum.Pending++
		}
	}
	return sum
}
