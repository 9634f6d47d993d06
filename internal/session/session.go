// Package session keeps the per-browser dashboard state: which model is
// selected, what was rendered for it and the latest prediction.
package session

import (
	"sync"
	"time"

	"github.com/Brownie44l1/xray-detect/internal/artifacts"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/Brownie44l1/xray-detect/internal/report"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type NoticeLevel string

const (
	LevelWarning NoticeLevel = "warning"
	LevelError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel
	Title   string
	Message string
}

type State struct {
	ID     string
	Model  string
	Bundle artifacts.Bundle
	// Generation counts selections within the session.
	Generation uint64

	HasReport bool
	Accuracy  float64
	Rows      []report.Row
	Images    []artifacts.Image

	Prediction *model.Prediction
	// Preview is a PNG thumbnail of the last uploaded image.
	Preview []byte

	Notice *Notice
}

// Selected reports whether a model has been chosen.
func (s State) Selected() bool {
	return s.Model != ""
}

// Select builds the state for a newly chosen model. Nothing carries over from
// prev apart from the session ID, and the generation moves forward. An
// unreadable report is surfaced as a notice and the report section is left
// empty.
func Select(prev State, bundle artifacts.Bundle) State {
	st := State{ID: prev.ID, Model: bundle.Name, Bundle: bundle, Generation: prev.Generation + 1}
	if bundle.Name == "" {
		return st
	}

	if artifacts.Exists(bundle.Report) {
		rep, err := artifacts.LoadReport(bundle.Report)
		if err != nil {
			st.Notice = &Notice{Level: LevelError, Title: "Report Error", Message: err.Error()}
		} else {
			st.HasReport = true
			st.Accuracy, st.Rows = report.Format(rep)
		}
	}

	st.Images = bundle.PresentImages()
	return st
}

// WithPrediction records a successful prediction and its preview.
func (s State) WithPrediction(p model.Prediction, preview []byte) State {
	s.Prediction = &p
	s.Preview = preview
	s.Notice = nil
	return s
}

// WithNotice replaces the displayed notice and drops any stale prediction.
func (s State) WithNotice(level NoticeLevel, title, message string) State {
	s.Notice = &Notice{Level: level, Title: title, Message: message}
	s.Prediction = nil
	return s
}

// Store holds sessions in memory and forgets them after ttl of inactivity.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewStore(ttl time.Duration) *Store {
	return &Store{cache: cache.New(ttl, 2*ttl)}
}

// New starts an empty session with a fresh random ID.
func (s *Store) New() State {
	st := State{ID: uuid.NewString()}
	s.Save(st)
	return st
}

func (s *Store) Get(id string) (State, bool) {
	if id == "" {
		return State{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.get(id)
	if ok {
		// refresh the idle timer
		s.cache.SetDefault(id, st)
	}
	return st, ok
}

// Save replaces the stored state for st.ID.
func (s *Store) Save(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.SetDefault(st.ID, st)
}

// SaveIf stores st only while the session is still on st.Generation, so a
// result computed for an earlier selection cannot replace a newer one. It
// reports whether st was stored.
func (s *Store) SaveIf(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.get(st.ID); ok && cur.Generation != st.Generation {
		return false
	}
	s.cache.SetDefault(st.ID, st)
	return true
}

func (s *Store) get(id string) (State, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return State{}, false
	}
	return v.(State), true
}

func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

func (s *Store) Count() int {
	return s.cache.ItemCount()
}
