package utils

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const MaxUploadSize = 10 << 20

// SniffLength is how much of an upload is inspected to tell its type.
// Office containers are recognised by entries past the first sector.
const SniffLength = 3072

const oleStorage = "application/x-ole-storage"

type acceptedType struct {
	mime string
	// container is also accepted when the detector cannot look deep
	// enough to name the concrete legacy office format
	container string
}

var acceptedTypes = map[string]acceptedType{
	".pdf":  {mime: "application/pdf"},
	".jpg":  {mime: "image/jpeg"},
	".jpeg": {mime: "image/jpeg"},
	".png":  {mime: "image/png"},
	".doc":  {mime: "application/msword", container: oleStorage},
	".docx": {mime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xls":  {mime: "application/vnd.ms-excel", container: oleStorage},
	".xlsx": {mime: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
}

// DetectFileType returns the content type for an upload, or false when the
// extension is not accepted or the content does not match it.
func DetectFileType(filename string, head []byte) (string, bool) {
	want, ok := acceptedTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", false
	}
	detected := mimetype.Detect(head)
	if detected.Is(want.mime) || (want.container != "" && detected.Is(want.container)) {
		return want.mime, true
	}
	return "", false
}
