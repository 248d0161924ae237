// Package service implements the model lifecycle operations exposed over
// HTTP: validation and saving of canvas graphs, training configuration, runs
// and listings. Handlers stay thin; every rule about names, locks and
// persistence ordering lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/tensorgrid/internal/compiler"
	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/store"
	"github.com/specialistvlad/tensorgrid/internal/training"
)

var (
	// ErrInvalidConfig is returned for a training configuration that can never run.
	ErrInvalidConfig = errors.New("invalid training configuration")
	// ErrNotConfigured is returned when a run is requested before a training
	// configuration was set.
	ErrNotConfigured = errors.New("training configuration not set, configure training parameters first")
)

// DefaultPageSize is used by ListModels when no limit is given.
const DefaultPageSize = 50

// MaxPageSize caps ListModels.
const MaxPageSize = 100

// Options wires a Service. Locks must be the set the Pool was created with.
type Options struct {
	Store    *store.Store
	Registry *registry.Registry
	Pool     *training.Pool
	Locks    *training.Locks
}

// Service is safe for concurrent use.
type Service struct {
	store *store.Store
	reg   *registry.Registry
	pool  *training.Pool
	locks *training.Locks
}

// New returns a Service over opts.
func New(opts Options) *Service {
	if opts.Locks == nil {
		opts.Locks = training.NewLocks()
	}
	return &Service{store: opts.Store, reg: opts.Registry, pool: opts.Pool, locks: opts.Locks}
}

// ValidateModel compiles g and, when it is valid, saves it together with its
// training configuration. Nothing is written if compilation fails.
func (s *Service) ValidateModel(ctx context.Context, name string, g model.ModelGraph, cfg store.TrainingConfig) (*compiler.Summary, error) {
	if err := normalizeConfig(&cfg); err != nil {
		return nil, err
	}
	return s.create(ctx, name, g, &cfg)
}

// SaveModel compiles g and saves the architecture only.
func (s *Service) SaveModel(ctx context.Context, name string, g model.ModelGraph) (*compiler.Summary, error) {
	return s.create(ctx, name, g, nil)
}

func (s *Service) create(ctx context.Context, name string, g model.ModelGraph, cfg *store.TrainingConfig) (*compiler.Summary, error) {
	clean, err := store.SanitizeName(name)
	if err != nil {
		return nil, err
	}
	ctx, logger := ctxlog.With(ctx, "model", clean)
	release, err := s.hold(clean, "save")
	if err != nil {
		return nil, err
	}
	defer release()

	compiled, err := compiler.Compile(ctx, clean, g, s.reg)
	if err != nil {
		return nil, err
	}
	rec := &store.ModelRecord{Name: clean, Graph: g, Training: cfg}
	if err := s.store.CreateModel(ctx, rec, compiled.Spec); err != nil {
		return nil, err
	}
	logger.Info("Service: Model validated and saved.", "id", rec.ID, "configured", cfg != nil)
	return &compiled.Summary, nil
}

// UpdateTrainingConfig replaces the training configuration of a saved model.
func (s *Service) UpdateTrainingConfig(ctx context.Context, name string, cfg store.TrainingConfig) error {
	if err := normalizeConfig(&cfg); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	release, err := s.hold(name, "config")
	if err != nil {
		return err
	}
	defer release()

	if err := s.store.UpdateTrainingConfig(ctx, name, cfg); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Service: Training config updated.", "model", name)
	return nil
}

// normalizeConfig fills defaults and derives the loss from the problem type.
func normalizeConfig(cfg *store.TrainingConfig) error {
	loss, err := cfg.ProblemType.Loss()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch {
	case strings.TrimSpace(cfg.FileID) == "":
		return fmt.Errorf("%w: file_id is required", ErrInvalidConfig)
	case cfg.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, cfg.Epochs)
	case cfg.TrainingSplit <= 0 || cfg.TrainingSplit > 100:
		return fmt.Errorf("%w: training_split must be in (0, 100], got %v", ErrInvalidConfig, cfg.TrainingSplit)
	case cfg.BatchSize < 0:
		return fmt.Errorf("%w: batch_size must not be negative", ErrInvalidConfig)
	case cfg.ProblemType != model.ProblemImageClassification && strings.TrimSpace(cfg.TargetField) == "":
		return fmt.Errorf("%w: target_field is required for %s", ErrInvalidConfig, cfg.ProblemType)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = model.DefaultBatchSize
	}
	cfg.FileID = strings.TrimSpace(cfg.FileID)
	cfg.Loss = loss
	return nil
}

// ownerPrefix marks lock owners taken by service writes rather than runs.
const ownerPrefix = "service:"

// hold takes the model lock for the duration of a write. A model held by a
// run or by another write fails with training.ErrModelBusy.
func (s *Service) hold(name, op string) (release func(), err error) {
	owner := ownerPrefix + op + ":" + uuid.NewString()
	if err := s.locks.TryLock(name, owner); err != nil {
		return nil, err
	}
	return func() { s.locks.Unlock(name, owner) }, nil
}

// isTraining reports whether a run currently holds name.
func (s *Service) isTraining(name string) bool {
	owner, held := s.locks.Holder(name)
	return held && !strings.HasPrefix(owner, ownerPrefix)
}

// Layers returns the registry catalog for the canvas palette.
func (s *Service) Layers() []registry.CatalogEntry {
	return s.reg.Catalog()
}
