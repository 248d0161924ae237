package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// TabularSeed fixes the row shuffle.
const TabularSeed = 42

var missingValues = map[string]bool{"": true, "na": true, "nan": true, "null": true, "none": true, "n/a": true}

// LoadTabular reads a CSV file and splits it into train and test sets.
// Rows with any missing value are dropped before shuffling.
func LoadTabular(ctx context.Context, path string, d model.TabularDataset) (*Bound, error) {
	if err := checkSplit(path, d.TrainingSplit); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, loadErr(path, "%w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, loadErr(path, "file is empty")
		}
		return nil, loadErr(path, "reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	target := -1
	for i, h := range header {
		if h == d.TargetField {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, loadErr(path, "target field '%s' not found; available columns: %s", d.TargetField, strings.Join(header, ", "))
	}

	var rows [][]string
	dropped := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, loadErr(path, "%w", err)
		}
		if hasMissing(rec) {
			dropped++
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, loadErr(path, "no complete rows")
	}
	ctxlog.FromContext(ctx).Debug("Dataset: CSV read.", "path", path, "rows", len(rows), "dropped", dropped)

	features := make([]string, 0, len(header)-1)
	for i, h := range header {
		if i != target {
			features = append(features, h)
		}
	}

	x := tensor.New(len(rows), len(features))
	for i, rec := range rows {
		col := 0
		for j, v := range rec {
			if j == target {
				continue
			}
			val, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
				return nil, loadErr(path, "column '%s' has non-numeric value '%s'", header[j], v)
			}
			x.Data[i*len(features)+col] = val
			col++
		}
	}
	y, classes := encodeTargets(rows, target)

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	rand.New(rand.NewSource(TabularSeed)).Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	cut := int(math.Floor(float64(len(rows)) * d.TrainingSplit / 100))
	if cut == 0 {
		return nil, loadErr(path, "training split %v%% of %d rows leaves no training data", d.TrainingSplit, len(rows))
	}
	return &Bound{
		Train:     subset(x, y, order[:cut]),
		Test:      subset(x, y, order[cut:]),
		BatchSize: batchSize(d.BatchSize),
		Features:  features,
		Classes:   classes,
	}, nil
}

func hasMissing(rec []string) bool {
	for _, v := range rec {
		if missingValues[strings.ToLower(strings.TrimSpace(v))] {
			return true
		}
	}
	return false
}

// encodeTargets parses numeric targets. When any target is not a number,
// the distinct values are sorted and replaced by their index.
func encodeTargets(rows [][]string, col int) ([]float64, []string) {
	y := make([]float64, len(rows))
	numeric := true
	for i, rec := range rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			numeric = false
			break
		}
		y[i] = v
	}
	if numeric {
		return y, nil
	}

	seen := map[string]bool{}
	for _, rec := range rows {
		seen[strings.TrimSpace(rec[col])] = true
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	for i, rec := range rows {
		y[i] = float64(index[strings.TrimSpace(rec[col])])
	}
	return y, classes
}

func subset(x *tensor.Tensor, y []float64, idx []int) nn.Dataset {
	if len(idx) == 0 {
		return nn.Dataset{}
	}
	ys := make([]float64, len(idx))
	for i, j := range idx {
		ys[i] = y[j]
	}
	return nn.Dataset{X: x.Gather(idx), Y: ys}
}
