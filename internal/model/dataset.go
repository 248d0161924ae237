// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the dataset descriptors a training job binds to.
//
// A descriptor is a reference, not data: it names a location that the
// dataset binder resolves to a readable path, plus the knobs that control how
// the file or directory is split and batched. Exactly one of Tabular or Image
// is set on a DatasetDescriptor.
package model

import "errors"

// DefaultBatchSize is used when a descriptor leaves the batch size unset.
const DefaultBatchSize = 32

// ColorMode selects the number of channels of decoded images.
type ColorMode string

const (
	ColorGrayscale ColorMode = "grayscale"
	ColorRGB       ColorMode = "rgb"
	ColorRGBA      ColorMode = "rgba"
)

// Channels returns the channel count for the mode, or 0 if unknown.
func (c ColorMode) Channels() int {
	switch c {
	case ColorGrayscale:
		return 1
	case ColorRGB, "":
		return 3
	case ColorRGBA:
		return 4
	}
	return 0
}

// LabelMode selects how class indices are encoded for image datasets.
type LabelMode string

const (
	LabelInt    LabelMode = "int"
	LabelBinary LabelMode = "binary"
)

// TabularDataset describes a CSV file with a header row.
type TabularDataset struct {
	Location      string  `json:"location"`
	TargetField   string  `json:"target_field"`
	TrainingSplit float64 `json:"training_split"`
	BatchSize     int     `json:"batch_size,omitempty"`
}

// ImageDataset describes a directory with one sub-directory per class.
type ImageDataset struct {
	Location      string    `json:"location"`
	ImageSize     int       `json:"image_size"`
	BatchSize     int       `json:"batch_size,omitempty"`
	ColorMode     ColorMode `json:"color_mode,omitempty"`
	LabelMode     LabelMode `json:"label_mode,omitempty"`
	TrainingSplit float64   `json:"training_split"`
}

// DatasetDescriptor is the tagged union of the supported dataset kinds.
type DatasetDescriptor struct {
	Tabular *TabularDataset `json:"tabular,omitempty"`
	Image   *ImageDataset   `json:"image,omitempty"`
}

// Validate checks that exactly one kind is set.
func (d DatasetDescriptor) Validate() error {
	switch {
	case d.Tabular != nil && d.Image != nil:
		return errors.New("dataset descriptor sets both tabular and image")
	case d.Tabular == nil && d.Image == nil:
		return errors.New("dataset descriptor is empty")
	}
	return nil
}
