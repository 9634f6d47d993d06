// Package artifacts maps model names to the files a training run leaves
// behind under the model root.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Brownie44l1/xray-detect/internal/errs"
)

const (
	ClassifierSuffix      = ".pkl"
	ReportSuffix          = "_report.json"
	ConfusionMatrixSuffix = "_confusion_matrix.png"
	LearningCurveSuffix   = "_learning_curve.png"
	LossCurveSuffix       = "_loss_curve.png"
)

// Kind identifies one of the evaluation images of a bundle.
type Kind string

const (
	KindConfusionMatrix Kind = "confusion-matrix"
	KindLearningCurve   Kind = "learning-curve"
	KindLossCurve       Kind = "loss-curve"
)

type Image struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Path  string `json:"-"`
}

// Bundle holds the expected artifact paths for one model. None of them are
// guaranteed to exist.
type Bundle struct {
	Name            string
	Dir             string
	Classifier      string
	Report          string
	ConfusionMatrix string
	LearningCurve   string
	LossCurve       string
}

func Resolve(root, name string) Bundle {
	dir := filepath.Join(root, name)
	return Bundle{
		Name:            name,
		Dir:             dir,
		Classifier:      filepath.Join(dir, name+ClassifierSuffix),
		Report:          filepath.Join(dir, name+ReportSuffix),
		ConfusionMatrix: filepath.Join(dir, name+ConfusionMatrixSuffix),
		LearningCurve:   filepath.Join(dir, name+LearningCurveSuffix),
		LossCurve:       filepath.Join(dir, name+LossCurveSuffix),
	}
}

// Images lists the evaluation images in display order.
func (b Bundle) Images() []Image {
	return []Image{
		{Kind: KindConfusionMatrix, Title: "Confusion Matrix", Path: b.ConfusionMatrix},
		{Kind: KindLearningCurve, Title: "Learning Curve", Path: b.LearningCurve},
		{Kind: KindLossCurve, Title: "Loss Curve", Path: b.LossCurve},
	}
}

func (b Bundle) Image(kind Kind) (Image, bool) {
	for _, img := range b.Images() {
		if img.Kind == kind {
			return img, true
		}
	}
	return Image{}, false
}

// PresentImages filters Images down to the files that exist right now.
func (b Bundle) PresentImages() []Image {
	var out []Image
	for _, img := range b.Images() {
		if Exists(img.Path) {
			out = append(out, img)
		}
	}
	return out
}

// EnumerateModels lists the immediate subdirectories of root, sorted.
func EnumerateModels(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errs.Wrap(errs.KindDirectoryNotFound, err, fmt.Sprintf("model root %q unavailable", root))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if isDir(filepath.Join(root, entry.Name())) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Lookup resolves name after checking that it is a plain directory name that
// exists under root.
func Lookup(root, name string) (Bundle, error) {
	if !ValidName(name) {
		return Bundle{}, errs.New(errs.KindBadRequest, fmt.Sprintf("invalid model name %q", name))
	}
	b := Resolve(root, name)
	if !isDir(b.Dir) {
		return Bundle{}, errs.New(errs.KindNotFound, fmt.Sprintf("model %q not found", name))
	}
	return b, nil
}

// ValidName rejects names that would leave the model root.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// Exists reports whether path is an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isDir follows symlinks, matching how a directory listing is browsed.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
