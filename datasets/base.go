package datasets

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cspine-ai/go-landmark/heatmap"
	"github.com/cspine-ai/go-landmark/images"
)

// BaseDataset reads annotated studies from a directory. Each study is an
// image file (.jpg, .jpeg or .png) with a sibling .csv annotation file of
// the same stem, holding one "x,y" line per landmark in original image
// coordinates. A negative coordinate marks the landmark as not annotated.
//
// The dataset is lazy: construction only scans the directory, decoding
// happens per record.
type BaseDataset struct {
	root    string
	entries []studyEntry
}

type studyEntry struct {
	imagePath      string
	annotationPath string
}

// NewBaseDataset scans root for annotated studies.
//
// Arguments:
//   - root: Directory containing image files and sibling .csv annotations.
//
// Returns:
//   - *BaseDataset: The scanned dataset.
//   - error: An error if the directory cannot be read or holds no studies.
func NewBaseDataset(root string) (*BaseDataset, error) {
	files, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "datasets: read dir %s", root)
	}

	var entries []studyEntry
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext := filepath.Ext(file.Name())
		switch ext {
		case ".jpg", ".jpeg", ".png":
			imagePath := filepath.Join(root, file.Name())
			annotationPath := strings.TrimSuffix(imagePath, ext) + ".csv"
			if _, err := os.Stat(annotationPath); err != nil {
				logrus.Debugf("datasets: skipping %s: no annotation file", file.Name())
				continue
			}
			entries = append(entries, studyEntry{
				imagePath:      imagePath,
				annotationPath: annotationPath,
			})
		}
	}
	if len(entries) == 0 {
		return nil, errors.Errorf("datasets: no annotated studies in %s", root)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].imagePath < entries[j].imagePath
	})

	logrus.Debugf("datasets: found %d annotated studies in %s", len(entries), root)
	return &BaseDataset{root: root, entries: entries}, nil
}

// Len returns the number of studies.
func (d *BaseDataset) Len() int {
	return len(d.entries)
}

// Record decodes the study at index i.
func (d *BaseDataset) Record(i int) (Record, error) {
	if i < 0 || i >= len(d.entries) {
		return Record{}, errors.Errorf("datasets: index %d out of range [0, %d)", i, len(d.entries))
	}
	entry := d.entries[i]

	img, err := images.ReadImage(entry.imagePath)
	if err != nil {
		return Record{}, err
	}
	landmarks, err := readLandmarks(entry.annotationPath)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Path:      entry.imagePath,
		Image:     img,
		Landmarks: landmarks,
	}, nil
}

// readLandmarks parses a CSV annotation file of "x,y" lines.
func readLandmarks(path string) ([]heatmap.Landmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "datasets: open %s", path)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "datasets: parse %s", path)
	}
	if len(rows) != heatmap.NumChannels {
		return nil, errors.Errorf("datasets: %s has %d landmarks, want %d",
			path, len(rows), heatmap.NumChannels)
	}

	landmarks := make([]heatmap.Landmark, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, errors.Errorf("datasets: %s row %d has %d fields, want 2", path, i, len(row))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 32)
		if err != nil {
			return nil, errors.Wrapf(err, "datasets: %s row %d", path, i)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 32)
		if err != nil {
			return nil, errors.Wrapf(err, "datasets: %s row %d", path, i)
		}
		landmarks[i] = heatmap.Landmark{
			X:       float32(x),
			Y:       float32(y),
			Visible: x >= 0 && y >= 0,
		}
	}
	return landmarks, nil
}
