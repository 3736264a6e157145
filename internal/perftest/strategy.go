// strategy.go — PerfTestStrategy: the validated configuration of one
// perf-test object, with its per-metric data collections.
package perftest

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/openharmony/perftest/internal/api"
	"github.com/openharmony/perftest/internal/collection"
	"github.com/openharmony/perftest/internal/logging"
)

var (
	log      = logging.Named("perftest")
	validate = validator.New()
)

// strategySpec is the wire shape of the strategy object. Validation tags
// assert the structural rules; the handler maps tag failures to the
// front-end messages.
type strategySpec struct {
	Metrics    []int32 `json:"metrics" validate:"required,min=1"`
	ActionCode string  `json:"actionCode" validate:"required"`
	ResetCode  string  `json:"resetCode"`
	BundleName string  `json:"bundleName"`
	Iterations int32   `json:"iterations" validate:"gte=0"`
	Timeout    int32   `json:"timeout" validate:"gte=0"`
}

// Strategy carries the validated perf-test configuration.
type Strategy struct {
	metrics       []collection.PerfMetric
	collections   map[collection.PerfMetric]collection.DataCollection
	actionCodeRef string
	resetCodeRef  string
	bundleName    string
	iterations    int32
	timeoutMs     int32
}

// NewStrategy validates the wire shape, resolves the bundle name from the calling
// process when absent, and builds one DataCollection per requested metric
// through the registered factory map.
func NewStrategy(spec strategySpec, callingPid int) (*Strategy, *api.CallError) {
	if err := validate.Struct(spec); err != nil {
		callErr := specValidationError(err)
		return nil, &callErr
	}
	seen := map[collection.PerfMetric]struct{}{}
	var metrics []collection.PerfMetric
	for _, raw := range spec.Metrics {
		metric := collection.PerfMetric(raw)
		if !metric.Valid() {
			callErr := api.NewErrorMsg(api.ErrInvalidInput, "Illegal perfMetric")
			return nil, &callErr
		}
		if _, dup := seen[metric]; dup {
			continue
		}
		seen[metric] = struct{}{}
		metrics = append(metrics, metric)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	s := &Strategy{
		metrics:       metrics,
		actionCodeRef: spec.ActionCode,
		resetCodeRef:  spec.ResetCode,
		bundleName:    spec.BundleName,
		iterations:    spec.Iterations,
		timeoutMs:     spec.Timeout,
	}
	if s.iterations == 0 {
		s.iterations = api.TestIterations
	}
	if s.timeoutMs == 0 {
		s.timeoutMs = api.ExecutionTimeoutMs
	}
	if callErr := s.resolveBundleName(callingPid); callErr != nil {
		return nil, callErr
	}
	s.createDataCollections()
	return s, nil
}

// specValidationError maps the first structural failure to its front-end
// message.
func specValidationError(err error) api.CallError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].Field() {
		case "Metrics":
			return api.NewErrorMsg(api.ErrInvalidInput, "Metrics cannot be empty")
		case "ActionCode":
			return api.NewErrorMsg(api.ErrInvalidInput, "ActionCode cannot be empty")
		}
	}
	return api.NewErrorMsg(api.ErrInvalidInput, err.Error())
}

// resolveBundleName fills the bundle name from the calling process cmdline
// when the strategy omitted it.
func (s *Strategy) resolveBundleName(callingPid int) *api.CallError {
	if s.bundleName != "" {
		return nil
	}
	if callingPid <= 0 {
		callingPid = os.Getpid()
	}
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(callingPid), "cmdline"))
	if err != nil || len(data) == 0 {
		log.Errorw("get bundleName by pid failed", "pid", callingPid)
		callErr := api.NewErrorMsg(api.ErrInitializeFailed, "Get current application bundleName failed")
		return &callErr
	}
	s.bundleName = strings.SplitN(string(data), "\x00", 2)[0]
	log.Infow("resolved bundleName by pid", "pid", callingPid, "bundleName", s.bundleName)
	return nil
}

// createDataCollections builds one collection per metric; metrics without a
// registered factory are logged and skipped.
func (s *Strategy) createDataCollections() {
	s.collections = make(map[collection.PerfMetric]collection.DataCollection, len(s.metrics))
	for _, metric := range s.metrics {
		dc := collection.Create(metric)
		if dc == nil {
			log.Warnw("no data collection for metric", "metric", metric)
			continue
		}
		dc.SetBundleName(s.bundleName)
		s.collections[metric] = dc
	}
}

// Metrics returns the requested metrics in ascending order.
func (s *Strategy) Metrics() []collection.PerfMetric { return s.metrics }

// HasMetric reports whether the metric was requested.
func (s *Strategy) HasMetric(metric collection.PerfMetric) bool {
	for _, m := range s.metrics {
		if m == metric {
			return true
		}
	}
	return false
}

// ActionCodeRef returns the action callback ref.
func (s *Strategy) ActionCodeRef() string { return s.actionCodeRef }

// ResetCodeRef returns the reset callback ref; empty when unset.
func (s *Strategy) ResetCodeRef() string { return s.resetCodeRef }

// BundleName returns the measured application bundle.
func (s *Strategy) BundleName() string { return s.bundleName }

// Iterations returns the round count.
func (s *Strategy) Iterations() int32 { return s.iterations }

// TimeoutMs returns the per-callback timeout in milliseconds.
func (s *Strategy) TimeoutMs() int32 { return s.timeoutMs }

// DataCollections returns the per-metric collections.
func (s *Strategy) DataCollections() map[collection.PerfMetric]collection.DataCollection {
	return s.collections
}
