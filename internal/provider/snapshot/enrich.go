package snapshot

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/sajdwp/internal/classfile"
	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/provider"
)

// Enrich backfills klass attributes from embedded class files: source file,
// SMAP, generic signatures, inner classes, constant pool, line and
// local-variable tables. Attributes already present in the document win.
func Enrich(ctx context.Context, doc *Document, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, k := range doc.Klasses {
		if len(k.ClassFile) == 0 {
			continue
		}
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cf, err := classfile.ParseBytes(k.ClassFile)
			if err != nil {
				return errs.CorruptSnapshot("class file of "+k.Name, err)
			}
			applyClassFile(k, cf)
			return nil
		})
	}
	return g.Wait()
}

func applyClassFile(k *provider.Klass, cf *classfile.ClassFile) {
	if k.SourceFile == "" {
		k.SourceFile = cf.SourceFile
	}
	if k.SourceDebugExtension == "" {
		k.SourceDebugExtension = cf.SourceDebugExtension
	}
	if k.GenericSignature == "" {
		k.GenericSignature = cf.Signature
	}
	if k.MajorVersion == 0 {
		k.MajorVersion, k.MinorVersion = cf.MajorVersion, cf.MinorVersion
	}
	if len(k.ConstantPool) == 0 {
		k.ConstantPoolCount = uint32(cf.ConstantPoolCount)
		k.ConstantPool = cf.RawConstantPool
	}
	if len(k.InnerClasses) == 0 {
		for _, ic := range cf.InnerClasses {
			if ic.Inner != k.Name {
				k.InnerClasses = append(k.InnerClasses, ic.Inner)
			}
		}
	}
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.GenericSignature == "" {
			if cff := cf.FindField(f.Name); cff != nil && cff.Descriptor == f.Signature {
				f.GenericSignature = cff.Signature
			}
		}
	}
	for i := range k.Methods {
		m := &k.Methods[i]
		cm := cf.FindMethod(m.Name, m.Signature)
		if cm == nil {
			continue
		}
		if m.GenericSignature == "" {
			m.GenericSignature = cm.Signature
		}
		if cm.Code == nil {
			continue
		}
		if len(m.Code) == 0 {
			m.Code = cm.Code.Code
		}
		if m.MaxLocals == 0 {
			m.MaxLocals = int32(cm.Code.MaxLocals)
		}
		if len(m.Lines) == 0 {
			for _, ln := range cm.Code.LineNumbers {
				m.Lines = append(m.Lines, provider.LineEntry{BCI: int64(ln.StartPC), Line: int32(ln.Line)})
			}
		}
		if !m.HasLocalVariableTable && cm.Code.HasLocalVariableTable {
			m.HasLocalVariableTable = true
			for _, v := range cm.Code.LocalVariables {
				m.Locals = append(m.Locals, provider.LocalVariable{
					Start:            int64(v.StartPC),
					Length:           int32(v.Length),
					Name:             v.Name,
					Signature:        v.Signature,
					GenericSignature: v.Generic,
					Slot:             int32(v.Index),
				})
			}
		}
	}
}
