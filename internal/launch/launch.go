// Package launch builds debugging sessions for a target.
package launch

import (
	"context"

	"github.com/tliron/commonlog"

	errs "github.com/orizon-lang/sajdwp/internal/errors"
	"github.com/orizon-lang/sajdwp/internal/mirror"
	"github.com/orizon-lang/sajdwp/internal/provider"
	"github.com/orizon-lang/sajdwp/internal/provider/compat"
	"github.com/orizon-lang/sajdwp/internal/provider/snapshot"
)

var log = commonlog.GetLogger("sajdwp.launch")

// NewSession selects the layout matching the target's specification
// version and returns a VM over p. On failure p is left open.
func NewSession(p provider.Provider) (*mirror.VM, error) {
	version := compat.TargetVersion(p)
	factory, name, err := compat.Select(version)
	if err != nil {
		return nil, err
	}
	log.Infof("target %s uses the %s layout", version, name)
	return mirror.New(p, factory(p)), nil
}

// Open loads the snapshot at path and starts a session on it. With wait it
// first blocks until the file appears.
func Open(ctx context.Context, path string, wait bool, opts snapshot.Options) (*mirror.VM, error) {
	if path == "" {
		return nil, errs.InvalidArgument(errs.CodeIllegalArgument, "no snapshot path")
	}
	if wait {
		log.Infof("waiting for %s", path)
		if err := snapshot.WaitFor(ctx, path); err != nil {
			return nil, err
		}
	}
	img, err := snapshot.Load(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	vm, err := NewSession(img)
	if err != nil {
		_ = img.Close()
		return nil, err
	}
	return vm, nil
}
