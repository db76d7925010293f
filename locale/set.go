package locale

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Set is the collection of locales a line can speak, with one default.
type Set struct {
	def     string
	locales map[string]*Locale
	order   []string
}

// NewSet builds a set; the first locale is the default.
func NewSet(locales ...*Locale) (*Set, error) {
	if len(locales) == 0 {
		return nil, errors.New("locale: empty set")
	}
	s := &Set{locales: make(map[string]*Locale)}
	for _, l := range locales {
		if err := s.add(l); err != nil {
			return nil, err
		}
	}
	s.def = locales[0].Tag
	return s, nil
}

// Builtin returns English and German with def as the default tag.
func Builtin(def string) *Set {
	en, de := English(), German()
	first, second := en, de
	if def == de.Tag {
		first, second = de, en
	}
	s, _ := NewSet(first, second)
	return s
}

func (s *Set) add(l *Locale) error {
	if l == nil || l.Tag == "" {
		return errors.New("locale: missing tag")
	}
	if err := l.Compile(); err != nil {
		return err
	}
	if _, ok := s.locales[l.Tag]; !ok {
		s.order = append(s.order, l.Tag)
	}
	s.locales[l.Tag] = l
	return nil
}

// Default returns the default locale.
func (s *Set) Default() *Locale {
	return s.locales[s.def]
}

// SetDefault makes tag the default locale. The tag must already be in the set.
func (s *Set) SetDefault(tag string) error {
	if _, ok := s.locales[tag]; !ok {
		return errors.Errorf("locale: unknown default %q", tag)
	}
	s.def = tag
	return nil
}

// Get returns the locale for tag, or the default.
func (s *Set) Get(tag string) *Locale {
	if l, ok := s.locales[tag]; ok {
		return l
	}
	return s.Default()
}

// Has reports whether tag is configured.
func (s *Set) Has(tag string) bool {
	_, ok := s.locales[tag]
	return ok
}

// All returns the locales, default first.
func (s *Set) All() []*Locale {
	out := make([]*Locale, 0, len(s.order))
	out = append(out, s.Default())
	for _, tag := range s.order {
		if tag != s.def {
			out = append(out, s.locales[tag])
		}
	}
	return out
}

// IsClosure checks text against the closure phrases of every locale, since a
// caller may answer in either language.
func (s *Set) IsClosure(text string) bool {
	for _, l := range s.All() {
		if l.IsClosure(text) {
			return true
		}
	}
	return false
}

// IsFarewell checks text against the farewell phrases of every locale.
func (s *Set) IsFarewell(text string) bool {
	for _, l := range s.All() {
		if l.IsFarewell(text) {
			return true
		}
	}
	return false
}

// LoadFile replaces or adds locales from a YAML file holding a list of
// locales. Entries whose tag matches a built-in are merged over it.
func (s *Set) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read locale file")
	}
	var raw []yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parse locale file")
	}
	for i := range raw {
		var probe struct {
			Tag string `yaml:"tag"`
		}
		if err := raw[i].Decode(&probe); err != nil {
			return errors.Wrapf(err, "locale entry %d", i)
		}
		var l *Locale
		switch probe.Tag {
		case English().Tag:
			l = English()
		case German().Tag:
			l = German()
		default:
			l = &Locale{}
		}
		if err := raw[i].Decode(l); err != nil {
			return errors.Wrapf(err, "locale %s", probe.Tag)
		}
		if err := s.add(l); err != nil {
			return err
		}
	}
	return nil
}
