package handlers

import (
	"bytes"
	"image/png"
	"net/http"

	"github.com/Brownie44l1/xray-detect/internal/artifacts"
	"github.com/Brownie44l1/xray-detect/internal/inference"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/Brownie44l1/xray-detect/internal/report"
	"github.com/Brownie44l1/xray-detect/internal/session"
	"github.com/labstack/echo/v4"
)

const (
	sessionCookie = "xray_session"
	previewSize   = 200
)

type legendEntry struct {
	Name  string
	Color string
}

type dashboardData struct {
	Models    []string
	State     session.State
	Accuracy  string
	RootError string
	Legend    []legendEntry
}

func (h *Handler) Dashboard(c echo.Context) error {
	st := h.session(c)

	data := dashboardData{
		State:    st,
		Accuracy: report.FormatAccuracy(st.Accuracy),
	}
	for _, l := range model.Labels() {
		data.Legend = append(data.Legend, legendEntry{Name: l.String(), Color: l.Color()})
	}

	names, err := artifacts.EnumerateModels(h.root)
	if err != nil {
		h.logger.Error("failed to list models", "root", h.root, "error", err)
		data.RootError = err.Error()
	}
	data.Models = names

	// a notice is shown once
	if st.Notice != nil {
		st.Notice = nil
		h.sessions.SaveIf(st)
	}
	return c.Render(http.StatusOK, "dashboard.html", data)
}

// Select swaps the session over to the chosen model, discarding everything
// rendered for the previous one.
func (h *Handler) Select(c echo.Context) error {
	st := h.session(c)

	name := c.FormValue("model")
	if name == "" {
		st = session.Select(st, artifacts.Bundle{})
	} else if b, err := artifacts.Lookup(h.root, name); err != nil {
		st = session.Select(st, artifacts.Bundle{}).
			WithNotice(session.LevelError, "Model Error", err.Error())
	} else {
		st = session.Select(st, b)
		h.logger.Info("model selected", "session", st.ID, "model", name)
	}

	h.sessions.Save(st)
	return c.Redirect(http.StatusSeeOther, "/")
}

// Upload classifies the posted image with the selected model. The result is
// dropped if the session switched models while the upload was running.
func (h *Handler) Upload(c echo.Context) error {
	st := h.session(c)
	defer func() {
		if !h.sessions.SaveIf(st) {
			h.logger.Info("discarded upload result for replaced selection", "session", st.ID, "model", st.Model)
		}
	}()

	if !st.Selected() {
		st = st.WithNotice(session.LevelWarning, "No Model Selected",
			"Please select a model before uploading an image.")
		return c.Redirect(http.StatusSeeOther, "/")
	}

	img, err := h.readUpload(c)
	if err != nil {
		st = st.WithNotice(session.LevelError, "Prediction Error", "Could not predict image: "+err.Error())
		return c.Redirect(http.StatusSeeOther, "/")
	}

	var preview bytes.Buffer
	if err := png.Encode(&preview, inference.Thumbnail(img, previewSize)); err != nil {
		h.logger.Warn("failed to encode preview", "error", err)
	}

	pred, err := h.classify(st.Bundle, func(classifier model.Classifier) (model.Prediction, error) {
		return inference.Predict(classifier, img)
	})
	if err != nil {
		st = st.WithNotice(session.LevelError, "Prediction Error", "Could not predict image: "+err.Error())
		return c.Redirect(http.StatusSeeOther, "/")
	}

	st = st.WithPrediction(pred, preview.Bytes())
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Preview(c echo.Context) error {
	st := h.session(c)
	if len(st.Preview) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no uploaded image")
	}
	return c.Blob(http.StatusOK, "image/png", st.Preview)
}

// session returns the caller's state, starting a new session when the cookie
// is missing or has expired.
func (h *Handler) session(c echo.Context) session.State {
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		if st, ok := h.sessions.Get(cookie.Value); ok {
			return st
		}
	}

	st := h.sessions.New()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    st.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return st
}
