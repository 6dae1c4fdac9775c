// Package cite renders paper references in common citation styles.
package cite

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	scherrors "github.com/scholaq/scholaq/internal/errors"
	"github.com/scholaq/scholaq/internal/store"
)

// Style formats a paper reference.
type Style struct {
	Name   string
	Format func(p *store.Paper) string
}

var (
	registryOnce sync.Once
	registry     map[string]Style
)

// styles builds the immutable style table. Initialized once, read-only
// afterward, so concurrent lookups need no locking.
func styles() map[string]Style {
	registryOnce.Do(func() {
		registry = map[string]Style{
			"apa": {Name: "apa", Format: func(p *store.Paper) string {
				return join(authorsInitials(p.Authors), yearParen(p.Year), p.Title+".", italicish(p.Journal), doi(p.DOI))
			}},
			"mla": {Name: "mla", Format: func(p *store.Paper) string {
				return join(authorsMLA(p.Authors), quoted(p.Title), italicish(p.Journal), yearBare(p.Year), doi(p.DOI))
			}},
			"chicago": {Name: "chicago", Format: func(p *store.Paper) string {
				return join(authorsMLA(p.Authors), quoted(p.Title), italicish(p.Journal), yearParen(p.Year), doi(p.DOI))
			}},
			"harvard": {Name: "harvard", Format: func(p *store.Paper) string {
				return join(authorsInitials(p.Authors), yearBare(p.Year), quoted(p.Title), italicish(p.Journal), doi(p.DOI))
			}},
			"vancouver": {Name: "vancouver", Format: func(p *store.Paper) string {
				return join(strings.Join(p.Authors, ", ")+".", p.Title+".", p.Journal+".", yearBare(p.Year), doi(p.DOI))
			}},
		}
	})
	return registry
}

// Lookup returns the style registered under name (case-insensitive).
func Lookup(name string) (Style, error) {
	s, ok := styles()[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Style{}, scherrors.Newf(scherrors.ErrCodeInvalidInput, "unknown citation style %q", name).
			WithSuggestion("available styles: " + strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the registered style names, sorted.
func Names() []string {
	table := styles()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders a paper reference in the named style.
func Format(p *store.Paper, styleName string) (string, error) {
	s, err := Lookup(styleName)
	if err != nil {
		return "", err
	}
	return s.Format(p), nil
}

func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// authorsInitials renders "Surname, F." author lists with an ampersand
// before the final author.
func authorsInitials(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	formatted := make([]string, len(authors))
	for i, a := range authors {
		formatted[i] = surnameInitial(a)
	}
	if len(formatted) == 1 {
		return formatted[0]
	}
	return strings.Join(formatted[:len(formatted)-1], ", ") + ", & " + formatted[len(formatted)-1]
}

// authorsMLA renders the first author as "Surname, Given" and appends
// "et al." when there are three or more.
func authorsMLA(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	first := authors[0]
	if idx := strings.LastIndex(first, " "); idx > 0 {
		first = first[idx+1:] + ", " + first[:idx]
	}
	switch len(authors) {
	case 1:
		return first + "."
	case 2:
		return first + ", and " + authors[1] + "."
	default:
		return first + ", et al."
	}
}

// surnameInitial converts "Ada Lovelace" to "Lovelace, A.".
func surnameInitial(name string) string {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, " ")
	if idx <= 0 {
		return name
	}
	given := name[:idx]
	surname := name[idx+1:]
	initials := make([]string, 0, 2)
	for _, part := range strings.Fields(given) {
		r := []rune(part)
		initials = append(initials, string(r[0])+".")
	}
	return surname + ", " + strings.Join(initials, " ")
}

func yearParen(year int) string {
	if year == 0 {
		return "(n.d.)."
	}
	return fmt.Sprintf("(%d).", year)
}

func yearBare(year int) string {
	if year == 0 {
		return ""
	}
	return fmt.Sprintf("%d.", year)
}

func quoted(title string) string {
	if title == "" {
		return ""
	}
	return `"` + title + `."`
}

// italicish marks the journal name; terminals have no italics, so the
// conventional underscore wrapping is used.
func italicish(journal string) string {
	if journal == "" {
		return ""
	}
	return "_" + journal + "_."
}

func doi(d string) string {
	if d == "" {
		return ""
	}
	return "https://doi.org/" + d
}
