package model

import (
	"github.com/stretchr/testify/mock"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(path string) (Classifier, error) {
	args := m.Called(path)
	if c := args.Get(0); c != nil {
		return c.(Classifier), args.Error(1)
	}
	return nil, args.Error(1)
}

type closingClassifier struct {
	closed int
}

func (c *closingClassifier) Predict(batch [][]float32) ([]int64, error) {
	return make([]int64, len(batch)), nil
}

func (c *closingClassifier) Close() error {
	c.closed++
	return nil
}
