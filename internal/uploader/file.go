package uploader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/weddingphotos/server/internal/models"
)

// LocalFile is a file on disk queued for upload
type LocalFile struct {
	Path string
	// Caption is derived from EXIF and becomes the item description
	Caption string
	models.FileDescriptor
}

// Describe stats and sniffs a local file. The mime type comes from the file
// content, not its extension.
func Describe(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect type of %s: %w", path, err)
	}

	file := &LocalFile{
		Path: path,
		FileDescriptor: models.FileDescriptor{
			Name:     filepath.Base(path),
			Size:     info.Size(),
			MimeType: baseMimeType(mtype.String()),
		},
	}

	if strings.HasPrefix(file.MimeType, "image/") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		file.Caption = ReadExif(f).Caption()
	}

	return file, nil
}

// DescribeAll describes every path. Two files may not share a base name
// because transfer results are keyed by it.
func DescribeAll(paths []string) ([]*LocalFile, error) {
	files := make([]*LocalFile, 0, len(paths))
	seen := make(map[string]string, len(paths))

	for _, p := range paths {
		file, err := Describe(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[file.Name]; ok {
			return nil, fmt.Errorf("%s and %s share the file name %q", prev, p, file.Name)
		}
		seen[file.Name] = p
		files = append(files, file)
	}
	return files, nil
}

// Descriptors returns the wire descriptors of files
func Descriptors(files []*LocalFile) []models.FileDescriptor {
	out := make([]models.FileDescriptor, len(files))
	for i, f := range files {
		out[i] = f.FileDescriptor
	}
	return out
}

// baseMimeType drops parameters such as "; charset=utf-8"
func baseMimeType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
