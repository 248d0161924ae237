package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/fsutil"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ImageSeed fixes the file shuffle shared by the train and test subsets.
const ImageSeed = 123

var imageExtensions = map[string]bool{".bmp": true, ".gif": true, ".jpeg": true, ".jpg": true, ".png": true, ".webp": true}

type imageFile struct {
	path  string
	label int
}

// LoadImages reads a class-per-directory image tree. Labels are the
// indices of the class directories in lexical order.
func LoadImages(ctx context.Context, root string, d model.ImageDataset) (*Bound, error) {
	if err := checkSplit(root, d.TrainingSplit); err != nil {
		return nil, err
	}
	if d.ImageSize <= 0 {
		return nil, loadErr(root, "image size must be positive, got %d", d.ImageSize)
	}
	channels := d.ColorMode.Channels()
	if channels == 0 {
		return nil, loadErr(root, "unsupported color mode '%s'", d.ColorMode)
	}

	classes, err := fsutil.ListDirs(root)
	if err != nil {
		return nil, loadErr(root, "%w", err)
	}
	if len(classes) == 0 {
		return nil, loadErr(root, "no class directories found")
	}
	if d.LabelMode == model.LabelBinary && len(classes) != 2 {
		return nil, loadErr(root, "binary labels need exactly 2 classes, found %d", len(classes))
	}

	var files []imageFile
	for label, class := range classes {
		entries, err := os.ReadDir(filepath.Join(root, class))
		if err != nil {
			return nil, loadErr(root, "%w", err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			files = append(files, imageFile{path: filepath.Join(root, class, name), label: label})
		}
	}
	if len(files) == 0 {
		return nil, loadErr(root, "no images found in %d class directories", len(classes))
	}

	rand.New(rand.NewSource(ImageSeed)).Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
	validationSplit := 1 - d.TrainingSplit/100
	numVal := int(validationSplit * float64(len(files)))
	trainFiles, testFiles := files[:len(files)-numVal], files[len(files)-numVal:]
	if len(trainFiles) == 0 {
		return nil, loadErr(root, "training split %v%% of %d images leaves no training data", d.TrainingSplit, len(files))
	}

	ctxlog.FromContext(ctx).Debug("Dataset: Decoding images.", "root", root, "classes", len(classes), "train", len(trainFiles), "test", len(testFiles))
	train, err := decodeAll(ctx, trainFiles, d.ImageSize, channels)
	if err != nil {
		return nil, loadErr(root, "%w", err)
	}
	test, err := decodeAll(ctx, testFiles, d.ImageSize, channels)
	if err != nil {
		return nil, loadErr(root, "%w", err)
	}

	return &Bound{
		Train:     train,
		Test:      test,
		BatchSize: batchSize(d.BatchSize),
		Features:  []string{tensor.TupleString([]int{d.ImageSize, d.ImageSize, channels})},
		Classes:   classes,
	}, nil
}

func decodeAll(ctx context.Context, files []imageFile, size, channels int) (nn.Dataset, error) {
	if len(files) == 0 {
		return nn.Dataset{}, nil
	}
	x := tensor.New(len(files), size, size, channels)
	y := make([]float64, len(files))
	rowSize := size * size * channels

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nn.Workers)
	for i, f := range files {
		y[i] = float64(f.label)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return decodeInto(x.Data[i*rowSize:(i+1)*rowSize], f.path, size, channels)
		})
	}
	if err := g.Wait(); err != nil {
		return nn.Dataset{}, err
	}
	return nn.Dataset{X: x, Y: y}, nil
}

// decodeInto decodes one file, resizes it bilinearly and writes its pixels
// as HWC floats in [0, 255].
func decodeInto(dst []float64, path string, size, channels int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(rgba, rgba.Bounds(), src, src.Bounds(), draw.Src, nil)

	for yy := 0; yy < size; yy++ {
		for xx := 0; xx < size; xx++ {
			c := rgba.RGBAAt(xx, yy)
			px := dst[(yy*size+xx)*channels:]
			switch channels {
			case 1:
				gray := color.GrayModel.Convert(c).(color.Gray)
				px[0] = float64(gray.Y)
			case 3:
				px[0], px[1], px[2] = float64(c.R), float64(c.G), float64(c.B)
			case 4:
				px[0], px[1], px[2], px[3] = float64(c.R), float64(c.G), float64(c.B), float64(c.A)
			}
		}
	}
	return nil
}
