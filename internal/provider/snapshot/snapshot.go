// Package snapshot implements the introspection provider over a snapshot
// document: a JSON or CBOR image of a frozen JVM's klasses, heap and threads.
package snapshot

import (
	"sync"

	"github.com/orizon-lang/sajdwp/internal/provider"
)

// FormatVersion is the document layout this package reads.
const FormatVersion = 1

// Document is the serialized form of a snapshot.
type Document struct {
	Format                int                `json:"format" cbor:"format"`
	VM                    provider.VMInfo    `json:"vm" cbor:"vm"`
	Properties            map[string]string  `json:"properties,omitempty" cbor:"properties,omitempty"`
	Klasses               []*provider.Klass  `json:"klasses" cbor:"klasses"`
	PrimitiveArrayKlasses []*provider.Klass  `json:"primitiveArrayKlasses,omitempty" cbor:"primitiveArrayKlasses,omitempty"`
	Heap                  []*provider.Oop    `json:"heap,omitempty" cbor:"heap,omitempty"`
	Threads               []*provider.Thread `json:"threads,omitempty" cbor:"threads,omitempty"`
}

// Image is an indexed, read-only Document. It implements provider.Provider.
type Image struct {
	doc     *Document
	klasses map[provider.Address]*provider.Klass
	objects map[provider.Address]*provider.Oop

	closeOnce sync.Once
	release   func() error
}

var _ provider.Provider = (*Image)(nil)

// New indexes doc. The document must not be modified afterwards.
func New(doc *Document) *Image {
	img := &Image{
		doc:     doc,
		klasses: make(map[provider.Address]*provider.Klass, len(doc.Klasses)+len(doc.PrimitiveArrayKlasses)),
		objects: make(map[provider.Address]*provider.Oop, len(doc.Heap)),
	}
	for _, k := range doc.Klasses {
		img.klasses[k.Address] = k
	}
	for _, k := range doc.PrimitiveArrayKlasses {
		img.klasses[k.Address] = k
	}
	for _, o := range doc.Heap {
		img.objects[o.Address] = o
	}
	return img
}

// Document returns the underlying document.
func (img *Image) Document() *Document { return img.doc }

func (img *Image) Info() provider.VMInfo { return img.doc.VM }

func (img *Image) Property(key string) (string, bool) {
	v, ok := img.doc.Properties[key]
	return v, ok
}

func (img *Image) Klasses() []*provider.Klass { return img.doc.Klasses }

func (img *Image) PrimitiveArrayKlasses() []*provider.Klass { return img.doc.PrimitiveArrayKlasses }

func (img *Image) Klass(addr provider.Address) (*provider.Klass, bool) {
	k, ok := img.klasses[addr]
	return k, ok
}

func (img *Image) Object(addr provider.Address) (*provider.Oop, bool) {
	o, ok := img.objects[addr]
	return o, ok
}

func (img *Image) Heap(fn func(*provider.Oop) bool) {
	for _, o := range img.doc.Heap {
		if !fn(o) {
			return
		}
	}
}

func (img *Image) Threads() []*provider.Thread { return img.doc.Threads }

// Close releases the backing mapping, if any. It is safe to call twice.
func (img *Image) Close() error {
	var err error
	img.closeOnce.Do(func() {
		if img.release != nil {
			err = img.release()
		}
	})
	return err
}
