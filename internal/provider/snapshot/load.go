package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
)

var log = commonlog.GetLogger("sajdwp.snapshot")

// Encoding names accepted by Options.Format.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Options control how a snapshot file is read.
type Options struct {
	// Format is auto, json or cbor.
	Format  string
	// Mmap maps the file instead of reading it.
	Mmap    bool
	// Workers bounds the class-file decoding fan-out; 0 means unbounded.
	Workers int
}

// Load reads, decodes and indexes the snapshot at path.
func Load(ctx context.Context, path string, opts Options) (*Image, error) {
	data, release, err := readFile(path, opts.Mmap)
	if err != nil {
		return nil, errs.Wrap(errs.CategoryProvider, errs.CodeCorruptSnapshot, err, "read snapshot %s", path)
	}
	format := opts.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(path, data)
	}
	doc, err := Decode(data, format)
	if err != nil {
		_ = release()
		return nil, err
	}
	if err := Enrich(ctx, doc, opts.Workers); err != nil {
		_ = release()
		return nil, err
	}
	img := New(doc)
	img.release = release
	log.Infof("loaded %s snapshot %s: %d klasses, %d heap entities, %d threads",
		format, path, len(doc.Klasses), len(doc.Heap), len(doc.Threads))
	return img, nil
}

// Decode parses a snapshot document in the given encoding.
func Decode(data []byte, format string) (*Document, error) {
	doc := &Document{}
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, doc)
	case FormatCBOR:
		err = cbor.Unmarshal(data, doc)
	default:
		return nil, errs.CorruptSnapshot(fmt.Sprintf("unknown snapshot format %q", format), nil)
	}
	if err != nil {
		return nil, errs.CorruptSnapshot("decode "+format+" snapshot", err)
	}
	if doc.Format != 0 && doc.Format != FormatVersion {
		return nil, errs.CorruptSnapshot(fmt.Sprintf("unsupported snapshot format version %d", doc.Format), nil)
	}
	return doc, nil
}

// Encode serializes doc. CBOR output uses the canonical encoding so equal
// documents produce equal bytes.
func Encode(doc *Document, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(doc)
	case FormatCBOR:
		em, err := cbor.CanonicalEncOptions().EncMode()
		if err != nil {
			return nil, err
		}
		return em.Marshal(doc)
	}
	return nil, fmt.Errorf("unknown snapshot format %q", format)
}

func detectFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".cbor":
		return FormatCBOR
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatCBOR
}
