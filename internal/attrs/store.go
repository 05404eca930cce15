// Package attrs implements the attribute dictionaries shared by every stage
// of a translation, along with the parsers for attribute lists, option lists
// and name=value configuration entries.
package attrs

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ErrIllegalName is returned when an attribute name does not match the
// attribute name syntax.
var ErrIllegalName = errors.New("illegal attribute name")

var nameRE = regexp.MustCompile(`^[\p{L}\p{N}_][-\p{L}\p{N}_]*$`)

// ValidName returns true if s is a legal attribute name: a letter, digit or
// underscore followed by letters, digits, underscores or hyphens.
func ValidName(s string) bool { return nameRE.MatchString(s) }

// Value is an attribute value that may be explicitly undefined. The zero
// Value is undefined.
type Value struct {
	Str     string
	Defined bool
}

// Def returns a defined Value.
func Def(s string) Value { return Value{Str: s, Defined: true} }

// Undef is the undefined Value.
var Undef = Value{}

func (v Value) String() string {
	if !v.Defined {
		return "<undefined>"
	}
	return v.Str
}

// Lookuper is implemented by anything that can resolve attribute names.
type Lookuper interface {
	Lookup(name string) (string, bool)
}

// Map is a plain attribute dictionary, as built from an attribute list or a
// configuration section. Unlike Store it is case-sensitive and can carry
// explicitly undefined entries, which remove names when merged.
type Map map[string]Value

// Lookup returns the named value and whether it is defined.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v.Str, ok && v.Defined
}

// Get returns the named value, or the empty string when undefined.
func (m Map) Get(name string) string { return m[name].Str }

// Has returns true if the name is present, even if it is undefined.
func (m Map) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Set defines name.
func (m Map) Set(name, value string) { m[name] = Def(value) }

// Undefine records name as explicitly undefined.
func (m Map) Undefine(name string) { m[name] = Undef }

// Update copies every entry of other into the receiver.
func (m Map) Update(other Map) {
	for k, v := range other {
		m[k] = v
	}
}

// Clone returns a shallow copy.
func (m Map) Clone() Map {
	c := make(Map, len(m))
	c.Update(m)
	return c
}

// Names returns the receiver's names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Store is the document attribute dictionary. Names are case-folded; an
// undefined name is simply absent.
type Store struct {
	fold cases.Caser
	vals map[string]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		fold: cases.Fold(),
		vals: make(map[string]string),
	}
}

func (s *Store) key(name string) string { return s.fold.String(name) }

// Lookup returns the named value and whether it is defined.
func (s *Store) Lookup(name string) (string, bool) {
	v, ok := s.vals[s.key(name)]
	return v, ok
}

// Get returns the named value, or the empty string when undefined.
func (s *Store) Get(name string) string { return s.vals[s.key(name)] }

// Defined returns true if name is defined.
func (s *Store) Defined(name string) bool {
	_, ok := s.vals[s.key(name)]
	return ok
}

// Set defines name without validating it; used for implicit and positional
// attributes.
func (s *Store) Set(name, value string) { s.vals[s.key(name)] = value }

// Define validates and defines name.
func (s *Store) Define(name, value string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %s", ErrIllegalName, name)
	}
	s.Set(name, value)
	return nil
}

// Unset undefines name.
func (s *Store) Unset(name string) { delete(s.vals, s.key(name)) }

// SetValue defines or undefines name according to v.
func (s *Store) SetValue(name string, v Value) {
	if v.Defined {
		s.Set(name, v.Str)
	} else {
		s.Unset(name)
	}
}

// Update merges m into the store; undefined entries remove their names.
func (s *Store) Update(m Map) {
	for k, v := range m {
		s.SetValue(k, v)
	}
}

// Len returns the number of defined attributes.
func (s *Store) Len() int { return len(s.vals) }

// Names returns the defined names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.vals))
	for k := range s.vals {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the store contents.
func (s *Store) Map() Map {
	m := make(Map, len(s.vals))
	for k, v := range s.vals {
		m[k] = Def(v)
	}
	return m
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := NewStore()
	for k, v := range s.vals {
		c.vals[k] = v
	}
	return c
}

// IsDefined reports whether a name expression is defined in l. The expression
// is a single name, a comma separated list that is defined if any name is
// defined, or a plus separated list that is defined only if all names are.
func IsDefined(expr string, l Lookuper) bool {
	defined := func(name string) bool {
		_, ok := l.Lookup(strings.TrimSpace(name))
		return ok
	}
	switch {
	case strings.Contains(expr, ","):
		for _, name := range strings.Split(expr, ",") {
			if defined(name) {
				return true
			}
		}
		return false
	case strings.Contains(expr, "+"):
		for _, name := range strings.Split(expr, "+") {
			if !defined(name) {
				return false
			}
		}
		return true
	default:
		return defined(expr)
	}
}
