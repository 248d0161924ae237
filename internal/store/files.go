package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/tensorgrid/internal/fsutil"
	"github.com/specialistvlad/tensorgrid/internal/model"
)

// DirectoryFileType marks a data file that is a directory of images.
const DirectoryFileType = "dir"

// ImageProperties are stored for image datasets.
type ImageProperties struct {
	ImageSize int             `json:"image_size"`
	BatchSize int             `json:"batch_size"`
	ColorMode model.ColorMode `json:"color_mode"`
	LabelMode model.LabelMode `json:"label_mode"`
}

// DataFile is an uploaded dataset living under the data directory.
type DataFile struct {
	ID        string           `json:"id"`
	FileName  string           `json:"file_name"`
	FileType  string           `json:"file_type"`
	Image     *ImageProperties `json:"image,omitempty"`
	CreatedOn time.Time        `json:"created_on"`
}

// Location is the file's path relative to the data directory.
func (f DataFile) Location() string {
	if f.FileType == DirectoryFileType || f.FileType == "zip" {
		return f.FileName
	}
	return f.FileName + "." + f.FileType
}

// CreateDataFile registers a file that already exists in the data
// directory. f.ID and f.CreatedOn are filled in.
func (s *Store) CreateDataFile(ctx context.Context, f *DataFile) error {
	f.FileName = strings.TrimSpace(f.FileName)
	f.FileType = strings.ToLower(strings.TrimSpace(f.FileType))
	if f.FileName == "" || f.FileType == "" {
		return fmt.Errorf("%w: file name and type are required", ErrInvalidFile)
	}
	path, err := fsutil.SafeJoin(s.data, f.Location())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s does not exist in the data directory", ErrInvalidFile, f.Location())
	}

	f.ID = uuid.NewString()
	f.CreatedOn = time.Now().UTC()
	var size, batch sql.NullInt64
	var color, label sql.NullString
	if f.Image != nil {
		size = sql.NullInt64{Int64: int64(f.Image.ImageSize), Valid: true}
		batch = sql.NullInt64{Int64: int64(f.Image.BatchSize), Valid: true}
		color = sql.NullString{String: string(f.Image.ColorMode), Valid: true}
		label = sql.NullString{String: string(f.Image.LabelMode), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO data_files
		(id, file_name, file_type, image_size, batch_size, color_mode, label_mode, created_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.FileName, f.FileType, size, batch, color, label, f.CreatedOn)
	if err != nil {
		return fmt.Errorf("inserting data file: %w", err)
	}
	return nil
}

// GetDataFile returns a registered file by id.
func (s *Store) GetDataFile(ctx context.Context, id string) (*DataFile, error) {
	var (
		f            DataFile
		size, batch  sql.NullInt64
		color, label sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, file_name, file_type, image_size, batch_size, color_mode, label_mode, created_on
		FROM data_files WHERE id = ?`, id).
		Scan(&f.ID, &f.FileName, &f.FileType, &size, &batch, &color, &label, &f.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data file %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if size.Valid {
		f.Image = &ImageProperties{
			ImageSize: int(size.Int64),
			BatchSize: int(batch.Int64),
			ColorMode: model.ColorMode(color.String),
			LabelMode: model.LabelMode(label.String),
		}
	}
	return &f, nil
}

// ResolvePath maps a data file id to its path on disk.
func (s *Store) ResolvePath(ctx context.Context, id string) (string, error) {
	f, err := s.GetDataFile(ctx, id)
	if err != nil {
		return "", err
	}
	return fsutil.SafeJoin(s.data, f.Location())
}
