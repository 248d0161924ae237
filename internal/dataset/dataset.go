// Package dataset binds a dataset descriptor to in-memory train and test
// splits the runtime can fit on.
//
// Tabular data comes from CSV files with a header row; image data from a
// directory holding one sub-directory per class. Both loaders are
// deterministic: the same file and descriptor always produce the same
// splits in the same order.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/fsutil"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/nn"
)

// ErrDatasetLoad is matched by every error the binder returns.
var ErrDatasetLoad = errors.New("dataset load failed")

// LoadError reports why a dataset could not be bound.
type LoadError struct {
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Location == "" {
		return "failed to load dataset: " + e.Err.Error()
	}
	return fmt.Sprintf("failed to load dataset '%s': %v", e.Location, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrDatasetLoad, e.Err} }

func loadErr(location string, format string, args ...any) error {
	return &LoadError{Location: location, Err: fmt.Errorf(format, args...)}
}

// Resolver maps a descriptor location to a readable local path.
type Resolver interface {
	ResolvePath(ctx context.Context, location string) (string, error)
}

// DirResolver resolves locations relative to a root directory and refuses
// anything outside it.
type DirResolver struct {
	Root string
}

func (r DirResolver) ResolvePath(_ context.Context, location string) (string, error) {
	path, err := fsutil.SafeJoin(r.Root, location)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// Bound is a dataset ready for training.
type Bound struct {
	Train     nn.Dataset
	Test      nn.Dataset
	BatchSize int
	// Features names the CSV columns or describes the image shape.
	Features []string
	// Classes lists label names in index order when labels were encoded.
	Classes []string
}

// Bind resolves and loads the descriptor.
func Bind(ctx context.Context, d model.DatasetDescriptor, r Resolver) (*Bound, error) {
	if err := d.Validate(); err != nil {
		return nil, &LoadError{Err: err}
	}
	location := ""
	if d.Tabular != nil {
		location = d.Tabular.Location
	} else {
		location = d.Image.Location
	}

	path, err := r.ResolvePath(ctx, location)
	if err != nil {
		return nil, &LoadError{Location: location, Err: err}
	}

	logger := ctxlog.FromContext(ctx)
	var b *Bound
	if d.Tabular != nil {
		b, err = LoadTabular(ctx, path, *d.Tabular)
	} else {
		b, err = LoadImages(ctx, path, *d.Image)
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Location = location
			return nil, le
		}
		return nil, &LoadError{Location: location, Err: err}
	}
	logger.Info("Dataset: Bound.", "location", location, "train", b.Train.Len(), "test", b.Test.Len(), "batch_size", b.BatchSize)
	return b, nil
}

func batchSize(n int) int {
	if n <= 0 {
		return model.DefaultBatchSize
	}
	return n
}

func checkSplit(location string, split float64) error {
	if split <= 0 || split > 100 {
		return loadErr(location, "training split must be in (0, 100], got %v", split)
	}
	return nil
}
