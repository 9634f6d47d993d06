// Package inference converts uploaded X-ray images into classifier input and
// classifier output into labelled predictions.
package inference

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Interpolation must stay the resampler the training images were resized
// with; changing it silently degrades accuracy.
const Interpolation = resize.Bicubic

var supportedFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
}

// Decode reads a PNG or JPEG image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindBadImage, err, "invalid image format. Supported: JPEG, PNG")
	}
	if !supportedFormats[format] {
		return nil, "", errs.New(errs.KindBadImage, fmt.Sprintf("unsupported image format %q. Supported: JPEG, PNG", format))
	}
	return img, format, nil
}

// Grayscale converts img to a single 8-bit channel using ITU-R 601 luma.
// Alpha is ignored: translucent pixels keep their straight RGB intensity
// instead of being darkened toward black.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(gray, b, img, b.Min, draw.Src)
		return gray
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			gray.SetGray(x, y, color.GrayModel.Convert(c).(color.Gray))
		}
	}
	return gray
}

// Preprocess converts img to grayscale, resizes it to ImageSize square and
// flattens it row-major into raw 0-255 intensities.
func Preprocess(img image.Image) []float32 {
	resized := resize.Resize(model.ImageSize, model.ImageSize, Grayscale(img), Interpolation)

	bounds := resized.Bounds()
	features := make([]float32, model.FeatureLength)
	for y := 0; y < model.ImageSize; y++ {
		for x := 0; x < model.ImageSize; x++ {
			px := color.GrayModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			features[y*model.ImageSize+x] = float32(px.Y)
		}
	}
	return features
}

// Predict runs img through classifier as a single-row batch.
func Predict(classifier model.Classifier, img image.Image) (model.Prediction, error) {
	return PredictVector(classifier, Preprocess(img))
}

// PredictVector classifies an already flattened feature row.
func PredictVector(classifier model.Classifier, features []float32) (model.Prediction, error) {
	if len(features) != model.FeatureLength {
		return model.Prediction{}, errs.New(errs.KindBadRequest,
			fmt.Sprintf("Expected %d values, got %d", model.FeatureLength, len(features)))
	}

	indices, err := classifier.Predict([][]float32{features})
	if err != nil {
		return model.Prediction{}, errs.Wrap(errs.KindServerError, err, "prediction failed")
	}
	if len(indices) == 0 {
		return model.Prediction{}, errs.Wrap(errs.KindServerError, errors.New("empty result"), "prediction failed")
	}
	return model.NewPrediction(indices[0]), nil
}

// Thumbnail returns a grayscale copy of img scaled to size for display.
func Thumbnail(img image.Image, size uint) image.Image {
	return resize.Resize(size, size, Grayscale(img), resize.Lanczos3)
}
