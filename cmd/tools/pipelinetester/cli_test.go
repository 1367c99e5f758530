package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	rulesPath, logLevel, useGSE = "", "warn", false
	scenePath, repeat, seed = "", 1, 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRunPrintsOutcomes(t *testing.T) {
	out := execute(t, "run", "--seed", "1", "--repeat", "3", "快跑")

	dec := json.NewDecoder(strings.NewReader(out))
	var kinds []string
	for dec.More() {
		var outcome struct {
			Text     string `json:"text"`
			Decision struct {
				Kind string `json:"kind"`
			} `json:"decision"`
		}
		require.NoError(t, dec.Decode(&outcome))
		assert.Equal(t, "快跑", outcome.Text)
		kinds = append(kinds, outcome.Decision.Kind)
	}
	assert.Equal(t, []string{"executable", "executable", "rejected"}, kinds)
}

func TestRunWithScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"area":"厨房"}`), 0o600))

	out := execute(t, "run", "--scene", path, "向左")
	assert.Contains(t, out, `"code": "restricted_area"`)
}

func TestRulesRoundTrip(t *testing.T) {
	out := execute(t, "rules")

	loaded, err := lexicon.Load(strings.NewReader(out), nil)
	require.NoError(t, err)
	assert.Equal(t, lexicon.Default().FullVocabulary(), loaded.FullVocabulary())
}
