package dmarc

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ExtractXML unwraps an aggregate report attachment. Reporters deliver
// reports as plain .xml, gzip (.gz / .xml.gz) or a zip archive holding a
// single XML file.
func ExtractXML(data []byte, filename string) ([]byte, error) {
	name := strings.ToLower(filename)

	switch {
	case strings.HasSuffix(name, ".gz"):
		return extractGzip(data)
	case strings.HasSuffix(name, ".zip"):
		return extractZip(data)
	case strings.HasSuffix(name, ".xml"):
		return data, nil
	default:
		// Some reporters ship bare XML with no extension.
		return data, nil
	}
}

func extractGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gzip attachment")
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress gzip attachment")
	}
	return content, nil
}

func extractZip(data []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open zip attachment")
	}

	for _, file := range reader.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".xml") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s inside zip", file.Name)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s inside zip", file.Name)
		}
		return content, nil
	}

	return nil, errors.New("zip attachment contains no xml file")
}

// IsReportAttachment reports whether the filename looks like a DMARC
// aggregate report payload.
func IsReportAttachment(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xml") ||
		strings.HasSuffix(name, ".gz") ||
		strings.HasSuffix(name, ".zip")
}
