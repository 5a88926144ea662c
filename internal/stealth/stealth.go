// Package stealth installs the fingerprint evasion script on browser pages.
package stealth

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
)

//go:embed evasions.js
var evasions string

// Persona holds the values the evasion script reports to the page.
type Persona struct {
	Languages     []string `json:"languages,omitempty"`
	Platform      string   `json:"platform,omitempty"`
	Cores         int      `json:"cores,omitempty"`
	Memory        int      `json:"memory,omitempty"`
	WebGLVendor   string   `json:"webglVendor,omitempty"`
	WebGLRenderer string   `json:"webglRenderer,omitempty"`
}

// PersonaForHost picks navigator languages from the storefront domain.
func PersonaForHost(host string) Persona {
	host = strings.ToLower(host)
	p := Persona{Platform: "Win32", Cores: 8, Memory: 8}
	switch {
	case strings.HasSuffix(host, ".tw"):
		p.Languages = []string{"zh-TW", "zh", "en-US", "en"}
	case strings.HasSuffix(host, ".sg"):
		p.Languages = []string{"en-SG", "en", "zh-SG"}
	case strings.HasSuffix(host, ".my"):
		p.Languages = []string{"en-MY", "en", "ms"}
	case strings.HasSuffix(host, ".th"):
		p.Languages = []string{"th-TH", "th", "en-US", "en"}
	default:
		p.Languages = []string{"en-US", "en"}
	}
	return p
}

// Script renders the init script for a persona.
func Script(p Persona) string {
	data, err := json.Marshal(p)
	if err != nil {
		data = []byte("{}")
	}
	return "window.__persona = " + string(data) + ";\n" + evasions
}

// ScriptTarget is anything that accepts init scripts, usually a page or a context.
type ScriptTarget interface {
	AddInitScript(script playwright.Script) error
}

// Injector applies the evasion script once per target.
type Injector struct {
	persona Persona
	script  string

	mu       sync.Mutex
	injected map[ScriptTarget]struct{}
	logger   *slog.Logger
}

func NewInjector(persona Persona, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{
		persona:  persona,
		script:   Script(persona),
		injected: make(map[ScriptTarget]struct{}),
		logger:   logger.With("component", "stealth"),
	}
}

func (i *Injector) Persona() Persona {
	return i.persona
}

// Inject installs the script on target. Failures are logged and never returned;
// a page without evasions is still usable.
func (i *Injector) Inject(target ScriptTarget) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.injected[target]; ok {
		return
	}
	if err := target.AddInitScript(playwright.Script{Content: playwright.String(i.script)}); err != nil {
		i.logger.Warn("stealth injection failed", "error", err)
		return
	}
	i.injected[target] = struct{}{}
	i.logger.Debug("stealth script installed")
}

// Injected reports whether target already carries the script.
func (i *Injector) Injected(target ScriptTarget) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.injected[target]
	return ok
}
