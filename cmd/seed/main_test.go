package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/soc-dashboard/internal/source"
)

func TestSeed(t *testing.T) {
	sample, err := source.Sample(source.ResourceHistory)
	require.NoError(t, err)
	const existing = `[{"host":"10.0.0.1","scan_id":"local"}]`

	tests := []struct {
		name        string
		existing    bool
		force       bool
		wantWritten bool
		wantData    string
	}{
		{name: "missing file is created", wantWritten: true, wantData: string(sample)},
		{name: "existing file kept without force", existing: true, wantData: existing},
		{name: "existing file overwritten with force", existing: true, force: true, wantWritten: true, wantData: string(sample)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "audit", "scan_history.json")
			if tt.existing {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))
			}

			written, err := seed(source.ResourceHistory, path, tt.force)

			require.NoError(t, err)
			assert.Equal(t, tt.wantWritten, written)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, string(data))
		})
	}
}

func TestSeed_StatError(t *testing.T) {
	// Путь через обычный файл: Stat возвращает не ErrNotExist
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := seed(source.ResourceDecisions, filepath.Join(blocker, "ia_decisions.json"), false)
	assert.Error(t, err)
}
