package handlers

import (
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Brownie44l1/xray-detect/internal/artifacts"
	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/Brownie44l1/xray-detect/internal/inference"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/Brownie44l1/xray-detect/internal/report"
	"github.com/Brownie44l1/xray-detect/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rcrowley/go-metrics"
)

const defaultMaxUploadBytes = 10 << 20

type Options struct {
	Root           string
	Loader         model.Loader
	Sessions       *session.Store
	Registry       metrics.Registry
	Logger         *slog.Logger
	MaxUploadBytes int64
}

type Handler struct {
	root           string
	loader         model.Loader
	sessions       *session.Store
	registry       metrics.Registry
	logger         *slog.Logger
	maxUploadBytes int64
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type ReportResponse struct {
	Accuracy float64      `json:"accuracy"`
	Rows     []report.Row `json:"rows"`
}

type ModelResponse struct {
	Name       string            `json:"name"`
	Classifier bool              `json:"classifier"`
	Report     *ReportResponse   `json:"report"`
	Artifacts  []artifacts.Image `json:"artifacts"`
}

func New(opts Options) *Handler {
	registry := opts.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Handler{
		root:           opts.Root,
		loader:         opts.Loader,
		sessions:       opts.Sessions,
		registry:       registry,
		logger:         opts.Logger,
		maxUploadBytes: maxUpload,
	}
}

// Register wires the dashboard, the JSON API and the operational endpoints
// onto e.
func (h *Handler) Register(e *echo.Echo) {
	e.Renderer = NewRenderer()
	e.Use(middleware.Recover())
	e.Use(requestLogger(h.logger))

	bodyLimit := middleware.BodyLimit(fmt.Sprintf("%dB", h.maxUploadBytes))

	e.GET("/health", h.Health)
	e.GET("/metrics", h.Metrics)

	e.GET("/", h.Dashboard)
	e.POST("/select", h.Select)
	e.POST("/upload", h.Upload, bodyLimit)
	e.GET("/preview", h.Preview)
	e.GET("/models/:name/artifacts/:kind", h.Artifact)

	api := e.Group("/api", middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	api.GET("/models", h.ListModels)
	api.GET("/models/:name", h.ModelDetail)
	api.POST("/models/:name/predict", h.PredictImage, bodyLimit)
	api.POST("/models/:name/predict/vector", h.PredictVector, bodyLimit)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Metrics(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().WriteHeader(http.StatusOK)
	metrics.WriteJSONOnce(h.registry, c.Response())
	return nil
}

func (h *Handler) ListModels(c echo.Context) error {
	names, err := artifacts.EnumerateModels(h.root)
	if err != nil {
		h.logger.Error("failed to list models", "root", h.root, "error", err)
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusOK, ModelsResponse{Models: names})
}

func (h *Handler) ModelDetail(c echo.Context) error {
	b, err := artifacts.Lookup(h.root, c.Param("name"))
	if err != nil {
		return errs.HTTPError(err)
	}

	resp := ModelResponse{
		Name:       b.Name,
		Classifier: artifacts.Exists(b.Classifier),
		Artifacts:  b.PresentImages(),
	}
	if resp.Artifacts == nil {
		resp.Artifacts = []artifacts.Image{}
	}

	if artifacts.Exists(b.Report) {
		rep, err := artifacts.LoadReport(b.Report)
		if err != nil {
			h.logger.Warn("unreadable report", "model", b.Name, "error", err)
			return errs.HTTPError(err)
		}
		acc, rows := report.Format(rep)
		resp.Report = &ReportResponse{Accuracy: acc, Rows: rows}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Artifact(c echo.Context) error {
	b, err := artifacts.Lookup(h.root, c.Param("name"))
	if err != nil {
		return errs.HTTPError(err)
	}
	img, ok := b.Image(artifacts.Kind(c.Param("kind")))
	if !ok || !artifacts.Exists(img.Path) {
		return echo.NewHTTPError(http.StatusNotFound, "artifact not found")
	}
	return c.File(img.Path)
}

func (h *Handler) PredictImage(c echo.Context) error {
	b, err := artifacts.Lookup(h.root, c.Param("name"))
	if err != nil {
		return errs.HTTPError(err)
	}

	img, err := h.readUpload(c)
	if err != nil {
		return errs.HTTPError(err)
	}

	pred, err := h.classify(b, func(classifier model.Classifier) (model.Prediction, error) {
		return inference.Predict(classifier, img)
	})
	if err != nil {
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pred)
}

func (h *Handler) PredictVector(c echo.Context) error {
	b, err := artifacts.Lookup(h.root, c.Param("name"))
	if err != nil {
		return errs.HTTPError(err)
	}

	var req model.PredictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON")
	}
	if len(req.Image) != model.FeatureLength {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Expected %d values, got %d", model.FeatureLength, len(req.Image)))
	}

	pred, err := h.classify(b, func(classifier model.Classifier) (model.Prediction, error) {
		return inference.PredictVector(classifier, req.Image)
	})
	if err != nil {
		return errs.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pred)
}

// readUpload decodes the multipart "image" field.
func (h *Handler) readUpload(c echo.Context) (image.Image, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, errs.New(errs.KindBadRequest, "No image file provided. Use 'image' as the form field name")
	}
	src, err := file.Open()
	if err != nil {
		return nil, errs.Wrap(errs.KindBadRequest, err, "failed to read upload")
	}
	defer src.Close()

	img, format, err := inference.Decode(src)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("received image",
		"file", file.Filename,
		"size", file.Size,
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return img, nil
}

// classify loads the bundle's classifier and runs fn against it, recording
// outcome metrics.
func (h *Handler) classify(b artifacts.Bundle, fn func(model.Classifier) (model.Prediction, error)) (model.Prediction, error) {
	start := time.Now()

	classifier, err := h.loader.Load(b.Classifier)
	if err != nil {
		metrics.GetOrRegisterCounter("predictions.errors", h.registry).Inc(1)
		h.logger.Warn("failed to load classifier", "model", b.Name, "path", b.Classifier, "error", err)
		return model.Prediction{}, err
	}

	pred, err := fn(classifier)
	if err != nil {
		metrics.GetOrRegisterCounter("predictions.errors", h.registry).Inc(1)
		h.logger.Warn("prediction failed", "model", b.Name, "error", err)
		return model.Prediction{}, err
	}
	pred.Model = b.Name

	metrics.GetOrRegisterTimer("predictions.latency", h.registry).UpdateSince(start)
	metrics.GetOrRegisterCounter("predictions."+counterName(pred.Class), h.registry).Inc(1)
	h.logger.Info("prediction", "model", b.Name, "class", pred.Class, "index", pred.Index)
	return pred, nil
}

func counterName(class string) string {
	return strings.ReplaceAll(strings.ToLower(class), " ", "_")
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("request", attrs...)
			return nil
		},
	})
}
