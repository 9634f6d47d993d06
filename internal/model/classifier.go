package model

// Classifier is a pre-trained model that maps a batch of feature rows to one
// class index per row.
type Classifier interface {
	Predict(batch [][]float32) ([]int64, error)
}

// Loader opens the classifier artifact stored at path.
type Loader interface {
	Load(path string) (Classifier, error)
}
