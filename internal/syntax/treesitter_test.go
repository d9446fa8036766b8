//go:build cgo

package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer_Python(t *testing.T) {
	require.True(t, IsAvailable())
	facts, err := NewAnalyzer().Analyze(context.Background(), []byte(pySource), LangPython)
	require.NoError(t, err)

	assert.True(t, facts.ModuleDocstring)
	require.Equal(t, 3, facts.Count(""))
	byName := map[string]Definition{}
	for _, d := range facts.Definitions {
		byName[d.Name] = d
	}
	assert.True(t, byName["LoginView"].Documented)
	assert.True(t, byName["post"].Annotated)
	assert.False(t, byName["helper"].Documented)
	assert.False(t, byName["helper"].Annotated)
}

func TestAnalyzer_TypeScript(t *testing.T) {
	facts, err := NewAnalyzer().Analyze(context.Background(), []byte(tsSource), LangTypeScript)
	require.NoError(t, err)

	assert.True(t, facts.DocComment)
	byName := map[string]Definition{}
	for _, d := range facts.Definitions {
		byName[d.Name] = d
	}
	assert.True(t, byName["submitLogin"].Documented)
	assert.True(t, byName["submitLogin"].Annotated)
	assert.False(t, byName["plain"].Annotated)
	assert.False(t, byName["LoginForm"].Documented)
}

func TestAnalyzer_JavaScriptNeverAnnotated(t *testing.T) {
	facts, err := NewAnalyzer().Analyze(context.Background(), []byte("function f(a) { return a }\n"), LangJavaScript)
	require.NoError(t, err)
	require.Equal(t, 1, facts.Count("function"))
	assert.False(t, facts.HasAnnotations())
	assert.False(t, facts.HasDocumentation())
}
