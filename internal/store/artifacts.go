package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/fsutil"
	"github.com/specialistvlad/tensorgrid/internal/model"
)

const artifactExt = ".json"

// artifactPath returns the spec file of a model, refusing names that would
// leave the artifact directory.
func (s *Store) artifactPath(name string) (string, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	return fsutil.SafeJoin(s.artifacts, name+artifactExt)
}

func (s *Store) writeArtifact(name string, spec model.ModelSpec) error {
	path, err := s.artifactPath(name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding spec: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

func (s *Store) readArtifact(name string) (model.ModelSpec, error) {
	var spec model.ModelSpec
	path, err := s.artifactPath(name)
	if err != nil {
		return spec, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return spec, fmt.Errorf("artifact of model '%s': %w", name, ErrNotFound)
	}
	if err != nil {
		return spec, err
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("decoding artifact of model '%s': %w", name, err)
	}
	return spec, nil
}

// removeArtifact deletes a spec file; a missing file is not an error.
func (s *Store) removeArtifact(ctx context.Context, name string) {
	path, err := s.artifactPath(name)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		ctxlog.FromContext(ctx).Warn("Store: Failed to remove artifact.", "model", name, "error", err)
	}
}
