// Package docx reads, edits and writes WordprocessingML (.docx) packages.
//
// Only the main document part and the styles part are parsed. Every other
// part of the package is copied to the output unchanged and in its original
// order, so images, numbering, headers and relationships survive an edit.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

const (
	// WordNamespace is the WordprocessingML main namespace.
	WordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	contentTypesPart = "[Content_Types].xml"
	documentPart     = "word/document.xml"
	stylesPart       = "word/styles.xml"
)

// entry is one part of the package, either backed by the source archive or
// by generated bytes.
type entry struct {
	name string
	file *zip.File
	data []byte
}

// Document is an open .docx package.
type Document struct {
	entries []entry

	root *node
	body *node
	w    string

	styles  *node
	stylesW string
}

// Open reads a .docx file fully into memory.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("read %s", path), err)
	}
	return Read(bytes.NewReader(data), int64(len(data)))
}

// Read parses a .docx package from r. r must stay valid for the lifetime of
// the Document since untouched parts are copied from it on Write.
func Read(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, domain.ExtractionError("open zip archive", err)
	}

	d := &Document{}
	seen := make(map[string]bool)
	for _, f := range zr.File {
		d.entries = append(d.entries, entry{name: f.Name, file: f})
		seen[f.Name] = true
	}

	for _, name := range []string{contentTypesPart, documentPart} {
		if !seen[name] {
			return nil, domain.ExtractionError(fmt.Sprintf("missing required file: %s", name), nil)
		}
	}

	raw, err := d.readEntry(documentPart)
	if err != nil {
		return nil, domain.ExtractionError("read main document", err)
	}
	if err := d.loadDocument(raw); err != nil {
		return nil, err
	}

	if seen[stylesPart] {
		raw, err := d.readEntry(stylesPart)
		if err != nil {
			return nil, domain.ExtractionError("read styles", err)
		}
		if err := d.loadStyles(raw); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *Document) readEntry(name string) ([]byte, error) {
	for _, e := range d.entries {
		if e.name != name {
			continue
		}
		if e.file == nil {
			return e.data, nil
		}
		rc, err := e.file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("file not found: %s", name)
}

func (d *Document) loadDocument(raw []byte) error {
	root, err := parseXML(raw)
	if err != nil {
		return domain.ExtractionError("parse main document", err)
	}
	docEl := root.firstElement()
	if docEl == nil || docEl.name.Local != "document" {
		return domain.ExtractionError("main document has no document element", nil)
	}
	w := namespacePrefix(docEl, WordNamespace, "w")
	body := docEl.child(w, "body")
	if body == nil {
		return domain.ExtractionError("main document has no body", nil)
	}
	d.root, d.body, d.w = root, body, w
	return nil
}

func (d *Document) loadStyles(raw []byte) error {
	root, err := parseXML(raw)
	if err != nil {
		return domain.ExtractionError("parse styles", err)
	}
	d.styles = root
	d.stylesW = namespacePrefix(root.firstElement(), WordNamespace, "w")
	return nil
}

// Save writes the package to path.
func (d *Document) Save(path string) error {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("write %s", path), err)
	}
	return nil
}

// Write serializes the package. Parsed parts are re-encoded from their trees;
// all other parts are copied raw without recompression.
func (d *Document) Write(w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, e := range d.entries {
		var data []byte
		switch {
		case e.name == documentPart:
			data = d.root.bytes()
		case e.name == stylesPart && d.styles != nil:
			data = d.styles.bytes()
		case e.file != nil:
			if err := zw.Copy(e.file); err != nil {
				return domain.IOError(fmt.Sprintf("copy %s", e.name), err)
			}
			continue
		default:
			data = e.data
		}

		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.file != nil {
			hdr.Modified = e.file.Modified
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return domain.IOError(fmt.Sprintf("create %s", e.name), err)
		}
		if _, err := fw.Write(data); err != nil {
			return domain.IOError(fmt.Sprintf("write %s", e.name), err)
		}
	}

	if err := zw.Close(); err != nil {
		return domain.IOError("finish zip archive", err)
	}
	return nil
}
