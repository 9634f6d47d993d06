package model

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCachingLoader_LoadsOnce(t *testing.T) {
	classifier := &closingClassifier{}
	next := new(mockLoader)
	next.On("Load", "/models/A/A.pkl").Return(classifier, nil).Once()

	loader := NewCachingLoader(next, time.Minute, discardLogger)
	defer loader.Stop()

	for i := 0; i < 3; i++ {
		got, err := loader.Load("/models/A/A.pkl")
		require.NoError(t, err)
		assert.Same(t, classifier, got)
	}
	assert.Equal(t, 1, loader.Len())
	next.AssertExpectations(t)
}

func TestCachingLoader_DoesNotCacheErrors(t *testing.T) {
	loadErr := errs.New(errs.KindModelLoad, "corrupt")
	next := new(mockLoader)
	next.On("Load", "/models/B/B.pkl").Return(nil, loadErr).Twice()

	loader := NewCachingLoader(next, time.Minute, discardLogger)
	defer loader.Stop()

	for i := 0; i < 2; i++ {
		_, err := loader.Load("/models/B/B.pkl")
		assert.True(t, errs.Is(err, errs.KindModelLoad))
	}
	assert.Equal(t, 0, loader.Len())
	next.AssertExpectations(t)
}

func TestCachingLoader_StopClosesClassifiers(t *testing.T) {
	classifier := &closingClassifier{}
	next := new(mockLoader)
	next.On("Load", "/models/C/C.pkl").Return(classifier, nil)

	loader := NewCachingLoader(next, time.Minute, discardLogger)
	_, err := loader.Load("/models/C/C.pkl")
	require.NoError(t, err)

	loader.Stop()
	assert.Equal(t, 1, classifier.closed)
	assert.Equal(t, 0, loader.Len())
}
