package scripts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mithun50/luma-cli/internal/domain"
)

func TestExpressionsAreEmbedded(t *testing.T) {
	for _, e := range []struct {
		name, src string
	}{
		{"capture", Capture().Source},
		{"generation", GenerationDetect().Source},
		{"app_state", AppState().Source},
		{"stop", StopGeneration().Source},
		{"set_mode", setModeSource},
		{"set_model", setModelSource},
		{"click", clickSource},
		{"scroll", scrollSource},
	} {
		require.NotEmpty(t, strings.TrimSpace(e.src), e.name)
	}
	require.False(t, Capture().AwaitPromise)
	require.True(t, AppState().AwaitPromise)
}

func TestInjectMessageEmbedsJSONLiteral(t *testing.T) {
	text := "say \"hi\"\nthen `run` \\ </script>   done"
	expr := InjectMessage(text)
	require.True(t, expr.AwaitPromise)
	require.NotContains(t, expr.Source, messagePlaceholder)

	lit, err := json.Marshal(text)
	require.NoError(t, err)
	require.Contains(t, expr.Source, "const text = "+string(lit)+";")

	var back string
	require.NoError(t, json.Unmarshal(lit, &back))
	require.Equal(t, text, back)
}

func TestArgumentExpressionsEmbedJSONObject(t *testing.T) {
	mode := SetMode(`Planning'); alert(1); ('`)
	require.Equal(t, "set_mode", mode.Name)
	require.True(t, mode.AwaitPromise)
	require.NotContains(t, mode.Source, argsPlaceholder)
	require.Contains(t, mode.Source, `const args = {"mode":"Planning'); alert(1); ('"};`)

	require.Contains(t, SetModel("Claude Sonnet 4.5").Source, `const args = {"model":"Claude Sonnet 4.5"};`)

	click := Click(domain.ClickTarget{Selector: `button[aria-label="Accept"]`, Index: 2, TextContent: "Accept"})
	require.Equal(t, "click", click.Name)
	require.Contains(t, click.Source, `const args = {"selector":"button[aria-label=\"Accept\"]","index":2,"textContent":"Accept"};`)

	pct := 0.5
	scroll := Scroll(domain.ScrollTarget{ScrollPercent: &pct})
	require.Contains(t, scroll.Source, `const args = {"scrollPercent":0.5};`)
	require.Contains(t, Scroll(domain.ScrollTarget{}).Source, `const args = {};`)
}
