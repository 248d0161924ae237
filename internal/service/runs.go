package service

import (
	"context"
	"fmt"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/store"
	"github.com/specialistvlad/tensorgrid/internal/training"
)

// Run is a submitted training run.
type Run struct {
	ID     string
	Result <-chan training.Result
}

// RunModel starts training of a configured model. The run's lifetime is
// bound to the pool, not to ctx.
func (s *Service) RunModel(ctx context.Context, name string) (*Run, error) {
	job, err := s.Job(ctx, name)
	if err != nil {
		return nil, err
	}
	runID, results, err := s.pool.Submit(job)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Service: Run submitted.", "model", job.ModelName, "run_id", runID)
	return &Run{ID: runID, Result: results}, nil
}

// Job builds the training job of a saved model. The dataset location is
// the data file id; the store resolves it when the run binds its dataset.
func (s *Service) Job(ctx context.Context, name string) (model.TrainingJob, error) {
	rec, err := s.store.GetModel(ctx, name)
	if err != nil {
		return model.TrainingJob{}, err
	}
	cfg := rec.Training
	if cfg == nil || cfg.FileID == "" || cfg.Epochs <= 0 {
		return model.TrainingJob{}, ErrNotConfigured
	}
	file, err := s.store.GetDataFile(ctx, cfg.FileID)
	if err != nil {
		return model.TrainingJob{}, err
	}

	job := model.TrainingJob{
		ModelName:   rec.Name,
		ProblemType: cfg.ProblemType,
		Hyper: model.Hyperparameters{
			Optimizer: cfg.Optimizer,
			Metric:    cfg.Metric,
			Epochs:    cfg.Epochs,
			Loss:      cfg.Loss,
		},
	}
	if cfg.ProblemType == model.ProblemImageClassification {
		img, err := imageDescriptor(file, cfg)
		if err != nil {
			return model.TrainingJob{}, err
		}
		job.Dataset.Image = img
	} else {
		job.Dataset.Tabular = &model.TabularDataset{
			Location:      file.ID,
			TargetField:   cfg.TargetField,
			TrainingSplit: cfg.TrainingSplit,
			BatchSize:     cfg.BatchSize,
		}
	}
	return job, nil
}

func imageDescriptor(file *store.DataFile, cfg *store.TrainingConfig) (*model.ImageDataset, error) {
	if file.Image == nil {
		return nil, fmt.Errorf("%w: data file %s has no image properties", ErrInvalidConfig, file.ID)
	}
	batch := file.Image.BatchSize
	if batch == 0 {
		batch = cfg.BatchSize
	}
	return &model.ImageDataset{
		Location:      file.ID,
		ImageSize:     file.Image.ImageSize,
		BatchSize:     batch,
		ColorMode:     file.Image.ColorMode,
		LabelMode:     file.Image.LabelMode,
		TrainingSplit: cfg.TrainingSplit,
	}, nil
}
