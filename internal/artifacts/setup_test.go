package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validReport = `{
  "accuracy": 0.87,
  "classification_report": {
    "0": {"precision": 0.9, "recall": 0.8, "f1-score": 0.85, "support": 50},
    "macro avg": {"precision": 0.7, "recall": 0.7, "f1-score": 0.7, "support": 150}
  }
}`

// writeFile creates path and any missing parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
