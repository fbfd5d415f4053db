// Package gitconfig reads and writes the git-config text format used for
// repository metadata.
//
// Section and variable names are case-insensitive and stored lowercased.
// Subsection names are case-sensitive, except in the legacy "[section.sub]"
// form where they are lowercased as git does.
package gitconfig

import (
	"fmt"
	"strings"
)

// Config is a parsed configuration, in file order.
type Config struct {
	Sections []*Section
}

// Section is one "[name]" or "[name \"sub\"]" block. The same section may
// appear more than once in a file; each occurrence is kept.
type Section struct {
	Name       string
	Subsection string
	Vars       []Var
}

// Var is a single "name = value" line. A bare name has the value "true".
type Var struct {
	Name  string
	Value string
}

// New returns an empty Config.
func New() *Config {
	return &Config{}
}

// Get returns the last value of section.subsection.name.
func (c *Config) Get(section, subsection, name string) (string, bool) {
	all := c.GetAll(section, subsection, name)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1], true
}

// GetAll returns every value of section.subsection.name in file order.
func (c *Config) GetAll(section, subsection, name string) []string {
	section = strings.ToLower(section)
	name = strings.ToLower(name)
	var out []string
	for _, s := range c.Sections {
		if s.Name != section || s.Subsection != subsection {
			continue
		}
		for _, v := range s.Vars {
			if v.Name == name {
				out = append(out, v.Value)
			}
		}
	}
	return out
}

// Set replaces the last value of section.subsection.name, or appends it to
// the last matching section, creating the section if needed.
func (c *Config) Set(section, subsection, name, value string) {
	section = strings.ToLower(section)
	name = strings.ToLower(name)

	var last *Section
	for _, s := range c.Sections {
		if s.Name == section && s.Subsection == subsection {
			last = s
		}
	}
	for i := len(c.Sections) - 1; i >= 0; i-- {
		s := c.Sections[i]
		if s.Name != section || s.Subsection != subsection {
			continue
		}
		for j := len(s.Vars) - 1; j >= 0; j-- {
			if s.Vars[j].Name == name {
				s.Vars[j].Value = value
				return
			}
		}
	}
	if last == nil {
		last = &Section{Name: section, Subsection: subsection}
		c.Sections = append(c.Sections, last)
	}
	last.Vars = append(last.Vars, Var{Name: name, Value: value})
}

// Encode writes c in canonical git-config form.
func (c *Config) Encode() []byte {
	var b strings.Builder
	for _, s := range c.Sections {
		if s.Subsection != "" {
			fmt.Fprintf(&b, "[%s \"%s\"]\n", s.Name, escapeSubsection(s.Subsection))
		} else {
			fmt.Fprintf(&b, "[%s]\n", s.Name)
		}
		for _, v := range s.Vars {
			fmt.Fprintf(&b, "\t%s = %s\n", v.Name, quoteValue(v.Value))
		}
	}
	return []byte(b.String())
}

func escapeSubsection(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}

func quoteValue(v string) string {
	needQuote := v != strings.TrimSpace(v) || strings.ContainsAny(v, "#;")
	var b strings.Builder
	for _, r := range v {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		default:
			b.WriteRune(r)
		}
	}
	if needQuote {
		return `"` + b.String() + `"`
	}
	return b.String()
}
