package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Template names the engine renders. All must exist for a language to be
// usable.
var RequiredTemplates = []string{
	"goal_review",
	"decide",
	"relation",
	"backstory",
	"nickname",
	"story",
}

// Templates holds the prompt templates of one language. Placeholders use
// {name} syntax and are substituted literally.
type Templates struct {
	lang  string
	texts map[string]string
}

// LoadTemplates reads dir/<lang>/<name>.md for every required template.
func LoadTemplates(dir, lang string) (*Templates, error) {
	t := &Templates{lang: lang, texts: make(map[string]string, len(RequiredTemplates))}
	for _, name := range RequiredTemplates {
		path := filepath.Join(dir, lang, name+".md")
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load template %s/%s: %w", lang, name, err)
		}
		t.texts[name] = string(raw)
	}
	return t, nil
}

// Render substitutes vars into the named template. Unknown placeholders are
// left in place so a broken prompt is visible in logs rather than silent.
func (t *Templates) Render(name string, vars map[string]string) (string, error) {
	text, ok := t.texts[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text), nil
}

// TemplateStore swaps template sets atomically on language switch, like the
// gamedata store.
type TemplateStore struct {
	dir     string
	current atomic.Pointer[Templates]
}

// NewTemplateStore loads the initial language.
func NewTemplateStore(dir, lang string) (*TemplateStore, error) {
	t, err := LoadTemplates(dir, lang)
	if err != nil {
		return nil, err
	}
	s := &TemplateStore{dir: dir}
	s.current.Store(t)
	return s, nil
}

// Templates returns the live set.
func (s *TemplateStore) Templates() *Templates {
	return s.current.Load()
}

// SwitchLanguage loads the new language fully before publishing.
func (s *TemplateStore) SwitchLanguage(lang string) error {
	if s.Templates().lang == lang {
		return nil
	}
	t, err := LoadTemplates(s.dir, lang)
	if err != nil {
		return fmt.Errorf("switch templates to %s: %w", lang, err)
	}
	s.current.Store(t)
	return nil
}
