// Package artifact manages the on-disk layout of per-invoice downloads: one
// folder per document kind under a configured root, file names derived
// deterministically from account id and invoice number.
package artifact

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Kind identifies one of the two documents downloadable per invoice row.
type Kind string

const (
	// KindXML is the structured invoice document.
	KindXML Kind = "xml"
	// KindPDF is the rendered invoice document.
	KindPDF Kind = "pdf"
)

// Folder returns the kind-specific directory name under the download root.
func (k Kind) Folder() string {
	switch k {
	case KindXML:
		return "facturas_xml"
	case KindPDF:
		return "facturas_pdf"
	default:
		return string(k)
	}
}

// Ext returns the file extension for the kind.
func (k Kind) Ext() string { return string(k) }

// ErrNotFound distinguishes "artifact was never extracted" from a storage
// failure, so the service boundary can answer 404 versus 500.
var ErrNotFound = eris.New("artifact: not found")

// Store resolves and persists artifacts under a fixed root.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the configured download root.
func (s *Store) Root() string { return s.root }

// EnsureLayout creates the root and both kind folders.
func (s *Store) EnsureLayout() error {
	for _, k := range []Kind{KindXML, KindPDF} {
		dir := filepath.Join(s.root, k.Folder())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "artifact: create layout %s", dir)
		}
	}
	return nil
}

// Path returns the deterministic location for an artifact.
func (s *Store) Path(accountID, invoiceNumber string, k Kind) string {
	name := fmt.Sprintf("%s_%s.%s", accountID, invoiceNumber, k.Ext())
	return filepath.Join(s.root, k.Folder(), name)
}

// Exists reports whether the artifact is present on disk. Absence is a
// valid, non-error state.
func (s *Store) Exists(accountID, invoiceNumber string, k Kind) bool {
	_, err := os.Stat(s.Path(accountID, invoiceNumber, k))
	return err == nil
}

// Place moves a freshly downloaded scratch file to its deterministic path,
// returning the final location. A cross-device rename falls back to copy.
func (s *Store) Place(srcPath, accountID, invoiceNumber string, k Kind) (string, error) {
	dst := s.Path(accountID, invoiceNumber, k)
	if err := os.Rename(srcPath, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(srcPath, dst); err != nil {
		return "", eris.Wrapf(err, "artifact: place %s", dst)
	}
	_ = os.Remove(srcPath)
	return dst, nil
}

// ReadBase64 returns the artifact content encoded as base64. Missing files
// yield ErrNotFound; any other failure is a storage error.
func (s *Store) ReadBase64(accountID, invoiceNumber string, k Kind) (string, error) {
	path := s.Path(accountID, invoiceNumber, k)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", eris.Wrapf(ErrNotFound, "artifact: %s", path)
		}
		return "", eris.Wrapf(err, "artifact: read %s", path)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
