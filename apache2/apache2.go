// Package apache2 extracts reverse proxy targets from apache2 site configuration files.
//
// Only two directives are of interest:
//
//  Alias /name/...              the first URL path segment ("name/") is listed
//  <Location /prefix/name/...>  the segment after the prefix ("name/") is listed
//
// Every other line is ignored.
package apache2

import (
	"bufio"
	"io"
	"strings"

	"github.com/martin-sucha/proxy-listing/apache2/internal/a2cfg"
	"github.com/tdewolff/parse/v2"
)

// Kind selects which directive a Matcher extracts entries from.
type Kind int

const (
	KindAlias Kind = iota + 1
	KindLocation
)

func (k Kind) String() string {
	switch k {
	case KindAlias:
		return "alias"
	case KindLocation:
		return "location"
	default:
		return "unknown"
	}
}

// maxLineSize bounds a single configuration line. Files with longer lines fail to read.
const maxLineSize = 1 << 20

// Matcher extracts listing entries of one directive kind.
type Matcher struct {
	Kind Kind
	// Prefix is the namespace segment a Location path must start with.
	// It is not used for aliases.
	Prefix string
}

// AliasMatcher returns a Matcher listing the first URL path segment of every Alias directive.
func AliasMatcher() Matcher {
	return Matcher{Kind: KindAlias}
}

// LocationMatcher returns a Matcher listing the segment that follows prefix in Location sections.
func LocationMatcher(prefix string) Matcher {
	return Matcher{Kind: KindLocation, Prefix: strings.Trim(prefix, "/")}
}

// Match returns the listing entry declared on line, if any.
// Entries always end with a slash.
func (m Matcher) Match(line string) (string, bool) {
	switch d := ParseLine(line).(type) {
	case *a2cfg.Alias:
		if m.Kind != KindAlias {
			return "", false
		}
		return segmentAfter(d.URLPath, "")
	case *a2cfg.Location:
		if m.Kind != KindLocation {
			return "", false
		}
		return segmentAfter(d.Path, m.Prefix)
	}
	return "", false
}

// Entries returns the entries declared in r, in the order they appear.
// Duplicates are kept.
func (m Matcher) Entries(r io.Reader) ([]string, error) {
	var entries []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		if entry, ok := m.Match(sc.Text()); ok {
			entries = append(entries, entry)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// segmentAfter returns the path segment following prefix in urlPath, suffixed with a slash.
// prefix must match a whole segment.
func segmentAfter(urlPath, prefix string) (string, bool) {
	if !strings.HasPrefix(urlPath, "/") {
		return "", false
	}
	rest := urlPath[1:]
	if prefix != "" {
		p := prefix + "/"
		if !strings.HasPrefix(rest, p) {
			return "", false
		}
		rest = rest[len(p):]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return rest + "/", true
}

var (
	aliasName    = []byte("alias")
	locationName = []byte("<location")
)

// ParseLine returns *a2cfg.Alias or *a2cfg.Location for a line declaring one of them, nil otherwise.
// Directive names are case insensitive, as in apache2.
func ParseLine(line string) interface{} {
	name, args := lexLine(line)
	if len(args) == 0 {
		return nil
	}
	switch {
	case parse.EqualFold(name, aliasName):
		alias := &a2cfg.Alias{URLPath: args[0]}
		if len(args) > 1 {
			alias.FilePath = args[1]
		}
		return alias
	case parse.EqualFold(name, locationName):
		return &a2cfg.Location{Path: args[0]}
	}
	return nil
}

// lexLine splits a configuration line into the directive name and its arguments.
// Section openers keep the leading '<' in the name and the closing '>' is dropped.
func lexLine(line string) (name []byte, args []string) {
	z := parse.NewInputString(line)
	skipWhitespace(z)
	switch z.Peek(0) {
	case 0, '#':
		return nil, nil
	case '<':
		z.Move(1)
	}
	for c := z.Peek(0); c != 0 && c != '>' && !parse.IsWhitespace(c); c = z.Peek(0) {
		z.Move(1)
	}
	name = z.Shift()
	for {
		skipWhitespace(z)
		switch z.Peek(0) {
		case 0, '>':
			return name, args
		case '"':
			z.Move(1)
			z.Skip()
			for c := z.Peek(0); c != 0 && c != '"'; c = z.Peek(0) {
				if c == '\\' && z.Peek(1) != 0 {
					z.Move(1)
				}
				z.Move(1)
			}
			args = append(args, string(z.Shift()))
			if z.Peek(0) == '"' {
				z.Move(1)
				z.Skip()
			}
		default:
			for c := z.Peek(0); c != 0 && c != '>' && !parse.IsWhitespace(c); c = z.Peek(0) {
				z.Move(1)
			}
			args = append(args, string(z.Shift()))
		}
	}
}

func skipWhitespace(z *parse.Input) {
	for parse.IsWhitespace(z.Peek(0)) {
		z.Move(1)
	}
	z.Skip()
}
