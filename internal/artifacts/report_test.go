package artifacts

import (
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ModelA_report.json")
	writeFile(t, path, validReport)

	report, err := LoadReport(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.87, report.Accuracy, 1e-9)
	assert.Contains(t, report.Classes, "0")
	assert.Contains(t, report.Classes, "macro avg")
}

func TestLoadReport_NotFound(t *testing.T) {
	_, err := LoadReport(filepath.Join(t.TempDir(), "missing_report.json"))
	assert.True(t, errs.Is(err, errs.KindReportNotFound))
}

func TestParseReport_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains []string
	}{
		{name: "invalid json", body: `{"accuracy": 0.9,`},
		{name: "not an object", body: `[1, 2, 3]`},
		{name: "missing accuracy", body: `{"classification_report": {}}`, contains: []string{`"accuracy"`}},
		{name: "missing classification report", body: `{"accuracy": 0.5}`, contains: []string{`"classification_report"`}},
		{name: "missing both", body: `{}`, contains: []string{`"accuracy"`, `"classification_report"`}},
		{name: "null accuracy", body: `{"accuracy": null, "classification_report": {}}`, contains: []string{`"accuracy"`}},
		{name: "accuracy is a string", body: `{"accuracy": "high", "classification_report": {}}`, contains: []string{"not a number"}},
		{name: "report is a list", body: `{"accuracy": 0.5, "classification_report": []}`, contains: []string{"not an object"}},
		{name: "accuracy above one", body: `{"accuracy": 1.5, "classification_report": {}}`},
		{name: "accuracy below zero", body: `{"accuracy": -0.1, "classification_report": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseReport([]byte(tt.body))
			assert.Nil(t, report)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindMalformedReport))
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestParseReport_Bounds(t *testing.T) {
	for _, body := range []string{
		`{"accuracy": 0, "classification_report": {}}`,
		`{"accuracy": 1, "classification_report": {}}`,
	} {
		report, err := ParseReport([]byte(body))
		require.NoError(t, err)
		assert.NotNil(t, report.Classes)
	}
}
