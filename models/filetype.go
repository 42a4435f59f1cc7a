package models

import (
	"path/filepath"
	"strings"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
)

// FileType is the declared format of an upload, derived from the original
// file name's extension.
type FileType string

const (
	FileTypeJSON  FileType = "JSON"
	FileTypeExcel FileType = "EXCEL"
	FileTypeCSV   FileType = "CSV"
	FileTypeBin   FileType = "BIN"
	FileTypeXML   FileType = "XML"
)

var extensionToFileType = map[string]FileType{
	"json": FileTypeJSON,
	"xlsx": FileTypeExcel,
	"csv":  FileTypeCSV,
	"bin":  FileTypeBin,
	"xml":  FileTypeXML,
}

var fileTypeToExtension = map[FileType]string{
	FileTypeJSON:  "json",
	FileTypeExcel: "xlsx",
	FileTypeCSV:   "csv",
	FileTypeBin:   "bin",
	FileTypeXML:   "xml",
}

func (t FileType) Extension() string {
	return fileTypeToExtension[t]
}

// IsSupportedFileName reports whether fileName carries a recognized
// extension. Files without an extension are unsupported.
func IsSupportedFileName(fileName string) bool {
	_, err := FileTypeFromFileName(fileName)
	return err == nil
}

func FileTypeFromFileName(fileName string) (FileType, error) {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	if ext == "" {
		return "", apperrors.ErrUnsupportedFormat
	}

	t, ok := extensionToFileType[strings.ToLower(ext)]
	if !ok {
		return "", apperrors.ErrUnsupportedFormat
	}
	return t, nil
}
