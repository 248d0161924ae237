package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	ctx, _ := testutil.LoggerContext(t)
	s, err := Open(ctx, Options{
		DSN:         filepath.Join(root, "tensorgrid.db"),
		ArtifactDir: filepath.Join(root, "models"),
		DataDir:     filepath.Join(root, "data"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSpec(name string) model.ModelSpec {
	return model.ModelSpec{
		Version: model.SpecVersion,
		Name:    name,
		Layers: []model.LayerSpec{
			{Name: "in", Kind: "input", ClassName: "InputLayer", Config: json.RawMessage(`{"dim-1":4,"dim-2":0,"dim-3":0}`)},
			{Name: "out", Kind: "dense", ClassName: "Dense", Config: json.RawMessage(`{"units":3,"activation":"linear","use_bias":true}`), Inbound: []string{"in"}},
		},
		Inputs:  []string{"in"},
		Outputs: []string{"out"},
	}
}

func testGraph() model.ModelGraph {
	return model.ModelGraph{
		Nodes: []model.GraphNode{{ID: "in", Type: "custominput"}, {ID: "out", Type: "customdense"}},
		Edges: []model.GraphEdge{{Source: "in", Target: "out"}},
	}
}

func TestSanitizeName(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"mnist_v2", "mnist_v2", false},
		{"  padded-name ", "padded-name", false},
		{"", "", true},
		{"../etc/passwd", "", true},
		{"with space", "", true},
		{"dot.json", "", true},
		{strings.Repeat("a", MaxNameLength+1), "", true},
	}
	for _, tc := range testCases {
		got, err := SanitizeName(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidName, "input %q", tc.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestCreateAndGetModel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &ModelRecord{Name: " iris ", Graph: testGraph(), Training: &TrainingConfig{
		FileID: "f1", ProblemType: model.ProblemClassification, TargetField: "species",
		TrainingSplit: 80, Optimizer: "adam", Metric: "accuracy", Epochs: 5, BatchSize: 16,
		Loss: model.LossSparseCategoricalCrossentropy,
	}}
	require.NoError(t, s.CreateModel(ctx, rec, testSpec("iris")))
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "iris", rec.Name)

	got, err := s.GetModel(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, testGraph(), got.Graph)
	assert.Equal(t, rec.Training, got.Training)

	spec, err := s.LoadSpec(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, testSpec("iris").Outputs, spec.Outputs)
	assert.JSONEq(t, `{"units":3,"activation":"linear","use_bias":true}`, string(spec.Layers[1].Config))

	t.Run("duplicate name", func(t *testing.T) {
		err := s.CreateModel(ctx, &ModelRecord{Name: "iris", Graph: testGraph()}, testSpec("iris"))
		assert.ErrorIs(t, err, ErrNameTaken)
	})

	t.Run("invalid name writes nothing", func(t *testing.T) {
		err := s.CreateModel(ctx, &ModelRecord{Name: "../escape", Graph: testGraph()}, testSpec("x"))
		assert.ErrorIs(t, err, ErrInvalidName)
		_, statErr := os.Stat(filepath.Join(s.artifacts, "..", "escape.json"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := s.GetModel(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.LoadSpec(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestArchitectureOnlyModel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateModel(ctx, &ModelRecord{Name: "draft", Graph: testGraph()}, testSpec("draft")))
	got, err := s.GetModel(ctx, "draft")
	require.NoError(t, err)
	assert.Nil(t, got.Training)

	cfg := TrainingConfig{FileID: "f2", ProblemType: model.ProblemRegression, TrainingSplit: 70, Optimizer: "sgd", Metric: "mse", Epochs: 2, Loss: model.LossMeanSquaredError}
	require.NoError(t, s.UpdateTrainingConfig(ctx, "draft", cfg))
	got, err = s.GetModel(ctx, "draft")
	require.NoError(t, err)
	require.NotNil(t, got.Training)
	assert.Equal(t, cfg, *got.Training)

	assert.ErrorIs(t, s.UpdateTrainingConfig(ctx, "ghost", cfg), ErrNotFound)
}

func TestListAndDeleteModels(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateModel(ctx, &ModelRecord{Name: name, Graph: testGraph()}, testSpec(name)))
	}

	page, total, err := s.ListModels(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Name)
	assert.Equal(t, "b", page[1].Name)

	page, _, err = s.ListModels(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].Name)

	byID, err := s.GetModelByID(ctx, page[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a", byID.Name)

	name, err := s.DeleteModel(ctx, page[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	_, err = os.Stat(filepath.Join(s.artifacts, "a.json"))
	assert.True(t, os.IsNotExist(err))

	_, err = s.DeleteModel(ctx, page[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetModelByID(ctx, page[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDataFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(s.DataDir(), "iris.csv"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(s.DataDir(), "pets", "cats"), 0o755))

	csv := &DataFile{FileName: "iris", FileType: "CSV"}
	require.NoError(t, s.CreateDataFile(ctx, csv))
	assert.NotEmpty(t, csv.ID)

	path, err := s.ResolvePath(ctx, csv.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.DataDir(), "iris.csv"), path)

	images := &DataFile{FileName: "pets", FileType: DirectoryFileType, Image: &ImageProperties{ImageSize: 32, BatchSize: 8, ColorMode: model.ColorRGB, LabelMode: model.LabelInt}}
	require.NoError(t, s.CreateDataFile(ctx, images))
	got, err := s.GetDataFile(ctx, images.ID)
	require.NoError(t, err)
	assert.Equal(t, images.Image, got.Image)
	assert.Equal(t, "pets", got.Location())

	t.Run("missing on disk", func(t *testing.T) {
		assert.ErrorIs(t, s.CreateDataFile(ctx, &DataFile{FileName: "ghost", FileType: "csv"}), ErrInvalidFile)
	})
	t.Run("traversal", func(t *testing.T) {
		assert.ErrorIs(t, s.CreateDataFile(ctx, &DataFile{FileName: "../../etc/passwd", FileType: DirectoryFileType}), ErrInvalidFile)
	})
	t.Run("unknown id", func(t *testing.T) {
		_, err := s.ResolvePath(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
