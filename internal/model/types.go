package model

// ImageSize is the side length, in pixels, of the grayscale square every
// classifier was trained on.
const ImageSize = 64

// FeatureLength is the number of values in a flattened input row.
const FeatureLength = ImageSize * ImageSize

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type Prediction struct {
	Model string `json:"model,omitempty"`
	Index int64  `json:"index"`
	Class string `json:"class"`
	Color string `json:"color"`
}

// NewPrediction maps a raw classifier index onto its label and display colour.
func NewPrediction(index int64) Prediction {
	return Prediction{
		Index: index,
		Class: LabelName(index),
		Color: LabelColor(index),
	}
}
