package core_test

import (
	"archive/zip"
	"io"
)

// zipOpen/zipRead are small test-only helpers for asserting on the
// contents CreateArchive produced, via the stdlib archive/zip reader.
func zipOpen(path string) (*zip.ReadCloser, error) {
	return zip.OpenReader(path)
}

func zipRead(zr *zip.ReadCloser, name string) ([]byte, bool) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}
