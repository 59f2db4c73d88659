package main

import (
	"os"
	"path/filepath"
	"testing"

	"agentdesk/internal/agent"
	"agentdesk/internal/config"
	"agentdesk/internal/persona"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTools(t *testing.T) {
	cfg := config.Default()

	reg, err := buildTools(cfg)
	require.NoError(t, err)
	for _, name := range []string{"wikipedia", "duckduckgo", "google_search", "python_repl"} {
		_, ok := reg.Resolve(name)
		assert.True(t, ok, name)
	}

	cfg.Tools.CodeEval.Enabled = false
	reg, err = buildTools(cfg)
	require.NoError(t, err)
	_, ok := reg.Get(agent.KindCodeEval)
	assert.False(t, ok, "disabled code eval is not registered")
}

func TestSeedPersonas(t *testing.T) {
	r := persona.NewRegistry()
	specs := []persona.Spec{{
		Name: "Ada", Role: "researcher", Goal: "answer", Backstory: "librarian",
		Tools: []string{},
		Task:  &persona.DirectiveSpec{Description: "d", ExpectedOutput: "o"},
	}}
	require.NoError(t, seedPersonas(r, specs))

	p, ok := r.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Ada", p.Name)

	err := seedPersonas(r, []persona.Spec{{Name: "broken"}})
	var verr *persona.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent-1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"1","name":"Ada","role":"r","goal":"g","backstory":"b","tools":["wikipedia"],"task":{"description":"d","expected_output":"o"}}`), 0o644))

	spec, err := readSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada", spec.Name)
	assert.NoError(t, spec.Validate())

	_, err = readSpec(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
