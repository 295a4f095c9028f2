// Package scripts holds the page expressions evaluated in the IDE surface.
// They are opaque to the rest of the bridge: callers only see their JSON results.
package scripts

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/mithun50/luma-cli/internal/domain"
)

var (
	//go:embed capture.js
	captureSource string
	//go:embed generation.js
	generationSource string
	//go:embed appstate.js
	appStateSource string
	//go:embed inject.js
	injectSource string
	//go:embed stop.js
	stopSource string
	//go:embed setmode.js
	setModeSource string
	//go:embed setmodel.js
	setModelSource string
	//go:embed click.js
	clickSource string
	//go:embed scroll.js
	scrollSource string
)

const (
	messagePlaceholder = "__MESSAGE__"
	argsPlaceholder    = "__ARGS__"
)

func Capture() domain.Expression {
	return domain.Expression{Name: "capture", Source: captureSource}
}

func GenerationDetect() domain.Expression {
	return domain.Expression{Name: "generation", Source: generationSource}
}

func AppState() domain.Expression {
	return domain.Expression{Name: "app_state", Source: appStateSource, AwaitPromise: true}
}

func StopGeneration() domain.Expression {
	return domain.Expression{Name: "stop", Source: stopSource, AwaitPromise: true}
}

// InjectMessage returns the expression that types text into the chat input
// and submits it. The text is embedded as a JSON string literal.
func InjectMessage(text string) domain.Expression {
	lit, _ := json.Marshal(text)
	return domain.Expression{
		Name:         "inject",
		Source:       strings.Replace(injectSource, messagePlaceholder, string(lit), 1),
		AwaitPromise: true,
	}
}

func SetMode(mode string) domain.Expression {
	return withArgs("set_mode", setModeSource, map[string]string{"mode": mode})
}

func SetModel(model string) domain.Expression {
	return withArgs("set_model", setModelSource, map[string]string{"model": model})
}

func Click(target domain.ClickTarget) domain.Expression {
	return withArgs("click", clickSource, target)
}

func Scroll(target domain.ScrollTarget) domain.Expression {
	return withArgs("scroll", scrollSource, target)
}

// withArgs binds args as a JSON object literal in place of the
// expression's argument placeholder.
func withArgs(name, src string, args any) domain.Expression {
	lit, err := json.Marshal(args)
	if err != nil {
		lit = []byte("{}")
	}
	return domain.Expression{
		Name:         name,
		Source:       strings.Replace(src, argsPlaceholder, string(lit), 1),
		AwaitPromise: true,
	}
}
