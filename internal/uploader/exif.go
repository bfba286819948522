package uploader

import (
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifInfo is the subset of EXIF metadata used to caption an upload
type ExifInfo struct {
	CameraMake  string
	CameraModel string
	LensModel   string
	TakenAt     *time.Time
}

// ReadExif extracts camera and capture time from image bytes. Files without
// EXIF data yield an empty ExifInfo.
func ReadExif(r io.Reader) *ExifInfo {
	info := &ExifInfo{}

	x, err := exif.Decode(r)
	if err != nil {
		return info
	}

	info.CameraMake = exifString(x, exif.Make)
	info.CameraModel = exifString(x, exif.Model)
	info.LensModel = exifString(x, exif.LensModel)

	if tm, err := x.DateTime(); err == nil {
		info.TakenAt = &tm
	}
	return info
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	val, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(val, "\x00"))
}

// Camera joins make and model, dropping the make when the model repeats it
// (e.g. "Canon" + "Canon EOS R6").
func (e *ExifInfo) Camera() string {
	switch {
	case e.CameraModel == "":
		return e.CameraMake
	case e.CameraMake == "" || strings.HasPrefix(strings.ToLower(e.CameraModel), strings.ToLower(e.CameraMake)):
		return e.CameraModel
	default:
		return e.CameraMake + " " + e.CameraModel
	}
}

// Caption renders a short item description, or "" when nothing is known
func (e *ExifInfo) Caption() string {
	var parts []string
	if camera := e.Camera(); camera != "" {
		parts = append(parts, camera)
	}
	if e.TakenAt != nil {
		parts = append(parts, e.TakenAt.Format("2 Jan 2006 15:04"))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}
