package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySource = `"""Users views."""
# REQ-2025-003-user-login

class LoginView:
    """Handles login."""

    def post(self, request: Request) -> Response:
        return ok()


def helper(x):
    return x
`

const tsSource = `// REQ-2025-003-user-login
/**
 * Submits the login form.
 */
export async function submitLogin(user: string): Promise<void> {
  await api.post(user);
}

export class LoginForm {}

function plain(a, b) {
  return a + b;
}
`

func TestLanguageFromPath(t *testing.T) {
	tests := map[string]Language{
		"a.py": LangPython, "a.js": LangJavaScript, "a.jsx": LangJavaScript,
		"a.ts": LangTypeScript, "a.tsx": LangTSX,
	}
	for path, want := range tests {
		got, ok := LanguageFromPath(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	_, ok := LanguageFromPath("a.go")
	assert.False(t, ok)
}

func TestScan_Python(t *testing.T) {
	facts := Scan([]byte(pySource), LangPython)

	assert.True(t, facts.ModuleDocstring)
	require.Equal(t, 3, facts.Count(""))
	assert.Equal(t, 1, facts.Count("class"))

	byName := map[string]Definition{}
	for _, d := range facts.Definitions {
		byName[d.Name] = d
	}
	assert.True(t, byName["LoginView"].Documented)
	assert.True(t, byName["post"].Annotated)
	assert.False(t, byName["helper"].Annotated)
	assert.False(t, byName["helper"].Documented)
	assert.Equal(t, 11, byName["helper"].Line)
	assert.True(t, facts.HasDocumentation())
	assert.True(t, facts.HasAnnotations())
}

func TestScan_Python_Undocumented(t *testing.T) {
	facts := Scan([]byte("def a(x):\n    return x\n"), LangPython)
	assert.False(t, facts.HasDocumentation())
	assert.False(t, facts.HasAnnotations())
}

func TestScan_TypeScript(t *testing.T) {
	facts := Scan([]byte(tsSource), LangTypeScript)

	assert.True(t, facts.DocComment)
	require.Equal(t, 3, facts.Count(""))
	assert.True(t, facts.Definitions[0].Documented)
	assert.True(t, facts.Definitions[0].Annotated)
	assert.False(t, facts.Definitions[2].Annotated)
	assert.False(t, facts.Definitions[1].Documented)
}

func TestAnalyzer_Unsupported(t *testing.T) {
	_, err := NewAnalyzer().Analyze(context.Background(), []byte("x"), Language("cobol"))
	assert.Error(t, err)
}
