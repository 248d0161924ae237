package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/model"
)

// TrainingConfig is the training setup stored with a model.
type TrainingConfig struct {
	FileID        string            `json:"file_id"`
	ProblemType   model.ProblemType `json:"problem_type"`
	TargetField   string            `json:"target_field,omitempty"`
	TrainingSplit float64           `json:"training_split"`
	Optimizer     string            `json:"optimizer"`
	Metric        string            `json:"metric"`
	Epochs        int               `json:"epochs"`
	BatchSize     int               `json:"batch_size,omitempty"`
	Loss          string            `json:"loss"`
}

// ModelRecord is a saved model. Training is nil until a configuration is set.
type ModelRecord struct {
	ID        int64            `json:"id"`
	Name      string           `json:"model_name"`
	Graph     model.ModelGraph `json:"graph"`
	Training  *TrainingConfig  `json:"training,omitempty"`
	CreatedOn time.Time        `json:"created_on"`
	UpdatedOn time.Time        `json:"updated_on"`
}

// CreateModel inserts rec and writes spec as its artifact. Both happen or
// neither does. rec.ID and timestamps are filled in.
func (s *Store) CreateModel(ctx context.Context, rec *ModelRecord, spec model.ModelSpec) error {
	name, err := SanitizeName(rec.Name)
	if err != nil {
		return err
	}
	graph, err := json.Marshal(rec.Graph)
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	cfg := nullableConfig(rec.Training)
	res, err := tx.ExecContext(ctx, `INSERT INTO models
		(name, graph_json, problem_type, file_id, target_field, training_split, optimizer, metric, epochs, batch_size, loss, created_on, updated_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(append([]any{name, string(graph)}, cfg...), now, now)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: '%s'. Use a different name", ErrNameTaken, name)
		}
		return fmt.Errorf("inserting model: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := s.writeArtifact(name, spec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		s.removeArtifact(ctx, name)
		return fmt.Errorf("committing model: %w", err)
	}

	rec.ID, rec.Name, rec.CreatedOn, rec.UpdatedOn = id, name, now, now
	ctxlog.FromContext(ctx).Info("Store: Model saved.", "model", name, "id", id)
	return nil
}

func nullableConfig(c *TrainingConfig) []any {
	if c == nil {
		return []any{nil, nil, nil, nil, nil, nil, nil, nil, nil}
	}
	return []any{int(c.ProblemType), c.FileID, c.TargetField, c.TrainingSplit, c.Optimizer, c.Metric, c.Epochs, c.BatchSize, c.Loss}
}

// UpdateTrainingConfig replaces the training configuration of a model.
func (s *Store) UpdateTrainingConfig(ctx context.Context, name string, cfg TrainingConfig) error {
	args := append(nullableConfig(&cfg), time.Now().UTC(), name)
	res, err := s.db.ExecContext(ctx, `UPDATE models SET
		problem_type = ?, file_id = ?, target_field = ?, training_split = ?, optimizer = ?,
		metric = ?, epochs = ?, batch_size = ?, loss = ?, updated_on = ?
		WHERE name = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating training config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("model '%s': %w", name, ErrNotFound)
	}
	return nil
}

const modelColumns = `id, name, graph_json, problem_type, file_id, target_field, training_split,
	optimizer, metric, epochs, batch_size, loss, created_on, updated_on`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (*ModelRecord, error) {
	var (
		rec         ModelRecord
		graph       string
		problemType sql.NullInt64
		fileID      sql.NullString
		target      sql.NullString
		split       sql.NullFloat64
		optimizer   sql.NullString
		metric      sql.NullString
		epochs      sql.NullInt64
		batchSize   sql.NullInt64
		loss        sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Name, &graph, &problemType, &fileID, &target, &split,
		&optimizer, &metric, &epochs, &batchSize, &loss, &rec.CreatedOn, &rec.UpdatedOn)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(graph), &rec.Graph); err != nil {
		return nil, fmt.Errorf("decoding graph of model '%s': %w", rec.Name, err)
	}
	if problemType.Valid {
		rec.Training = &TrainingConfig{
			FileID:        fileID.String,
			ProblemType:   model.ProblemType(problemType.Int64),
			TargetField:   target.String,
			TrainingSplit: split.Float64,
			Optimizer:     optimizer.String,
			Metric:        metric.String,
			Epochs:        int(epochs.Int64),
			BatchSize:     int(batchSize.Int64),
			Loss:          loss.String,
		}
	}
	return &rec, nil
}

// GetModel returns the model saved under name.
func (s *Store) GetModel(ctx context.Context, name string) (*ModelRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE name = ?`, name)
	rec, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model '%s': %w", name, ErrNotFound)
	}
	return rec, err
}

// GetModelByID returns the model with the given id.
func (s *Store) GetModelByID(ctx context.Context, id int64) (*ModelRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE id = ?`, id)
	rec, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListModels returns a page of models, newest first, and the total count.
func (s *Store) ListModels(ctx context.Context, offset, limit int) ([]ModelRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM models`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+modelColumns+` FROM models ORDER BY created_on DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ModelRecord
	for rows.Next() {
		rec, err := scanModel(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

// DeleteModel removes a model by id together with its artifact and
// returns its name.
func (s *Store) DeleteModel(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `DELETE FROM models WHERE id = ? RETURNING name`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("model %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("deleting model %d: %w", id, err)
	}
	s.removeArtifact(ctx, name)
	ctxlog.FromContext(ctx).Info("Store: Model deleted.", "model", name, "id", id)
	return name, nil
}

// LoadSpec reads the compiled spec saved for name.
func (s *Store) LoadSpec(ctx context.Context, name string) (model.ModelSpec, error) {
	return s.readArtifact(name)
}
