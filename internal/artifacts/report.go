package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const (
	keyAccuracy             = "accuracy"
	keyClassificationReport = "classification_report"
)

var validate = validator.New()

// Report is a parsed {name}_report.json. Classes keeps the raw
// classification_report object, aggregate rows included.
type Report struct {
	Accuracy float64        `validate:"gte=0,lte=1"`
	Classes  map[string]any `validate:"required"`
}

func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.KindReportNotFound, err, "report not found")
		}
		return nil, errs.Wrap(errs.KindServerError, err, "failed to read report")
	}

	report, err := ParseReport(data)
	if err != nil {
		return nil, errors.Wrapf(err, "report %s", path)
	}
	return report, nil
}

// ParseReport decodes report JSON. Every missing or mistyped top-level key is
// reported in a single MalformedReport error.
func ParseReport(data []byte) (*Report, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.KindMalformedReport, err, "malformed report")
	}

	var (
		result *multierror.Error
		report Report
	)

	if field, ok := present(raw, keyAccuracy); !ok {
		result = multierror.Append(result, fmt.Errorf("missing required key %q", keyAccuracy))
	} else if err := json.Unmarshal(field, &report.Accuracy); err != nil {
		result = multierror.Append(result, fmt.Errorf("%q is not a number", keyAccuracy))
	}

	if field, ok := present(raw, keyClassificationReport); !ok {
		result = multierror.Append(result, fmt.Errorf("missing required key %q", keyClassificationReport))
	} else if err := json.Unmarshal(field, &report.Classes); err != nil {
		result = multierror.Append(result, fmt.Errorf("%q is not an object", keyClassificationReport))
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, errs.Wrap(errs.KindMalformedReport, err, "malformed report")
	}

	if err := validate.Struct(report); err != nil {
		return nil, errs.Wrap(errs.KindMalformedReport, err, "malformed report")
	}
	return &report, nil
}

func present(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	field, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(field), []byte("null")) {
		return nil, false
	}
	return field, true
}
