// Package report turns a parsed evaluation report into the per-class table
// shown next to a model.
package report

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Brownie44l1/xray-detect/internal/artifacts"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/spf13/cast"
)

type Row struct {
	// Index is the parsed class key, or -1 if it does not fit an int.
	Index     int     `json:"index"`
	Key       string  `json:"-"`
	Label     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Format returns the report accuracy and one row per numeric class key,
// ordered by class index. Aggregate entries such as "macro avg" are dropped,
// and missing metrics count as zero.
func Format(r *artifacts.Report) (float64, []Row) {
	rows := make([]Row, 0, len(r.Classes))
	for key, value := range r.Classes {
		if !isClassKey(key) {
			continue
		}
		metrics, ok := value.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, newRow(key, metrics))
	}

	sort.Slice(rows, func(i, j int) bool {
		return lessKey(rows[i].Key, rows[j].Key)
	})
	return r.Accuracy, rows
}

// FormatAccuracy renders accuracy with two decimals.
func FormatAccuracy(accuracy float64) string {
	return strconv.FormatFloat(accuracy, 'f', 2, 64)
}

func newRow(key string, metrics map[string]any) Row {
	row := Row{
		Index:     -1,
		Key:       key,
		Label:     key,
		Precision: round2(cast.ToFloat64(metrics["precision"])),
		Recall:    round2(cast.ToFloat64(metrics["recall"])),
		F1:        round2(cast.ToFloat64(metrics["f1-score"])),
		Support:   int(cast.ToFloat64(metrics["support"])),
	}
	if idx, err := strconv.Atoi(key); err == nil {
		row.Index = idx
		if label, ok := model.LabelFor(int64(idx)); ok {
			row.Label = label.String()
		}
	}
	return row
}

func isClassKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return true
}

// lessKey orders digit strings numerically without parsing them.
func lessKey(a, b string) bool {
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		return len(ta) < len(tb)
	}
	if ta != tb {
		return ta < tb
	}
	return a < b
}

// round2 rounds the exact binary value half to even, so 0.125 becomes 0.12.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
