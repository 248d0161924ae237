package service

import (
	"context"
	"fmt"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/store"
)

// Auto-layout used for nodes saved without a canvas position.
const (
	layoutX    = 100
	layoutStep = 200
)

// ModelGraph returns the canvas graph of a saved model. Nodes without a
// position are laid out in a column.
func (s *Service) ModelGraph(ctx context.Context, name string) (model.ModelGraph, error) {
	rec, err := s.store.GetModel(ctx, name)
	if err != nil {
		return model.ModelGraph{}, err
	}
	g := rec.Graph
	for i := range g.Nodes {
		if g.Nodes[i].Position == nil {
			g.Nodes[i].Position = &model.Position{X: layoutX, Y: float64(i * layoutStep)}
		}
	}
	return g, nil
}

// Pagination describes a page of ListModels.
type Pagination struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ModelInfo is one row of the model list.
type ModelInfo struct {
	ID            int64   `json:"id"`
	Name          string  `json:"model_name"`
	CreatedOn     string  `json:"created_on"`
	Epochs        int     `json:"epochs,omitempty"`
	Optimizer     string  `json:"optimizer,omitempty"`
	Metric        string  `json:"metric,omitempty"`
	Loss          string  `json:"loss,omitempty"`
	TrainingSplit float64 `json:"training_split,omitempty"`
	Training      bool    `json:"training"`
}

// ListModels returns saved models, newest first. A zero limit selects
// DefaultPageSize.
func (s *Service) ListModels(ctx context.Context, offset, limit int) ([]ModelInfo, Pagination, error) {
	if offset < 0 {
		return nil, Pagination{}, fmt.Errorf("offset must not be negative, got %d", offset)
	}
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < 0 || limit > MaxPageSize:
		return nil, Pagination{}, fmt.Errorf("limit must be between 1 and %d, got %d", MaxPageSize, limit)
	}

	recs, total, err := s.store.ListModels(ctx, offset, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	out := make([]ModelInfo, 0, len(recs))
	for _, r := range recs {
		info := ModelInfo{ID: r.ID, Name: r.Name, CreatedOn: r.CreatedOn.Format("2006-01-02T15:04:05.000000")}
		if r.Training != nil {
			info.Epochs = r.Training.Epochs
			info.Optimizer = r.Training.Optimizer
			info.Metric = r.Training.Metric
			info.Loss = r.Training.Loss
			info.TrainingSplit = r.Training.TrainingSplit
		}
		info.Training = s.isTraining(r.Name)
		out = append(out, info)
	}
	return out, Pagination{Total: total, Offset: offset, Limit: limit}, nil
}

// DeleteModel removes a model by id and returns its name. A model that is
// being trained stays.
func (s *Service) DeleteModel(ctx context.Context, id int64) (string, error) {
	rec, err := s.store.GetModelByID(ctx, id)
	if err != nil {
		return "", err
	}
	release, err := s.hold(rec.Name, "delete")
	if err != nil {
		return "", err
	}
	defer release()
	return s.store.DeleteModel(ctx, id)
}

// RegisterDataFile records a file or image directory that already exists in
// the data directory.
func (s *Service) RegisterDataFile(ctx context.Context, f *store.DataFile) error {
	if f.Image != nil {
		if err := checkImageProperties(f.Image); err != nil {
			return err
		}
	}
	if err := s.store.CreateDataFile(ctx, f); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Service: Data file registered.", "file_id", f.ID, "location", f.Location())
	return nil
}

func checkImageProperties(p *store.ImageProperties) error {
	if p.ImageSize <= 0 {
		return fmt.Errorf("%w: image_size must be positive", store.ErrInvalidFile)
	}
	if p.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must not be negative", store.ErrInvalidFile)
	}
	if p.ColorMode.Channels() == 0 {
		return fmt.Errorf("%w: unsupported color mode '%s'", store.ErrInvalidFile, p.ColorMode)
	}
	switch p.LabelMode {
	case "", model.LabelInt, model.LabelBinary:
	default:
		return fmt.Errorf("%w: unsupported label mode '%s'", store.ErrInvalidFile, p.LabelMode)
	}
	return nil
}
