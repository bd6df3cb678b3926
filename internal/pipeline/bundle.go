package pipeline

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
)

// writeBundle zips the final video and the two reconciliation subtitle files
// into the archive handed back to the caller.
func writeBundle(zipPath string, files ...string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, path := range files {
		if err := addToZip(zw, path); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addToZip(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
