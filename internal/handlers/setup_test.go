package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Brownie44l1/xray-detect/internal/artifacts"
	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/Brownie44l1/xray-detect/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"
)

const reportJSON = `{"accuracy":0.87,"classification_report":{
	"0":{"precision":0.9,"recall":0.8,"f1-score":0.85,"support":50},
	"2":{"precision":0.95,"recall":0.97,"f1-score":0.96,"support":40},
	"macro avg":{"precision":0.7,"recall":0.7,"f1-score":0.7,"support":90}}}`

// stubLoader hands out a classifier that always predicts index for any
// classifier file that exists. When release is set, Load signals entered and
// waits for release to be closed.
type stubLoader struct {
	index   int64
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (l *stubLoader) Load(path string) (model.Classifier, error) {
	l.calls++
	if l.release != nil {
		l.entered <- struct{}{}
		<-l.release
	}
	if !artifacts.Exists(path) {
		return nil, errs.Wrap(errs.KindModelLoad, os.ErrNotExist, "classifier artifact unavailable")
	}
	return stubClassifier{index: l.index}, nil
}

type stubClassifier struct {
	index int64
}

func (c stubClassifier) Predict(batch [][]float32) ([]int64, error) {
	out := make([]int64, len(batch))
	for i := range out {
		out[i] = c.index
	}
	return out, nil
}

type testServer struct {
	e        *echo.Echo
	root     string
	loader   *stubLoader
	registry metrics.Registry
}

// newTestServer builds a model root with:
//   - ModelA: classifier + report, no images
//   - ModelB: images only, no classifier
//   - Broken: classifier + malformed report
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()

	a := artifacts.Resolve(root, "ModelA")
	writeFile(t, a.Classifier, "opaque")
	writeFile(t, a.Report, reportJSON)

	b := artifacts.Resolve(root, "ModelB")
	writeFile(t, b.ConfusionMatrix, "cm-png")
	writeFile(t, b.LearningCurve, "lc-png")

	broken := artifacts.Resolve(root, "Broken")
	writeFile(t, broken.Classifier, "opaque")
	writeFile(t, broken.Report, `{"accuracy": 0.5`)

	writeFile(t, filepath.Join(root, "README.txt"), "not a model")

	loader := &stubLoader{index: 2}
	registry := metrics.NewRegistry()
	h := New(Options{
		Root:           root,
		Loader:         loader,
		Sessions:       session.NewStore(time.Minute),
		Registry:       registry,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxUploadBytes: 10 << 20,
	})

	e := echo.New()
	h.Register(e)
	return &testServer{e: e, root: root, loader: loader, registry: registry}
}

func (s *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, "xray.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}
