// Package html scans an application page for the script that defines the
// global environment and for the bundle's entry assets.
package html

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/imyousuf/PackEagle/internal/parser/globalenv"
)

// AssetsPrefix is the path under which a page's bundle assets are served.
const AssetsPrefix = "/assets/"

// ErrNoEnvScript is returned when no inline script assigns the global
// environment.
var ErrNoEnvScript = errors.New("no inline script assigns the global environment")

// Page is what a scan finds in an application page.
type Page struct {
	EnvScript    string         `json:"-"`
	Env          *globalenv.Env `json:"-"`
	BuildID      string         `json:"build_id,omitempty"`
	EntryScripts []string       `json:"entry_scripts"`
	Stylesheets  []string       `json:"stylesheets,omitempty"`
}

// Options configures Scan.
type Options struct {
	// Origin is stripped from absolute asset URLs, e.g. "https://example.com".
	// Absolute URLs on other origins are ignored.
	Origin  string
	EnvPath string // defaults to globalenv.DefaultPath
	Logger  *slog.Logger
}

type scanner struct {
	opts    Options
	origin  *url.URL
	page    Page
	scripts []string
}

// Scan parses an HTML document. The first inline script mentioning the
// environment global is decoded; script and stylesheet URLs under
// AssetsPrefix are listed by name relative to it, in document order.
func Scan(r io.Reader, opts Options) (*Page, error) {
	if opts.EnvPath == "" {
		opts.EnvPath = globalenv.DefaultPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &scanner{opts: opts}
	if opts.Origin != "" {
		u, err := url.Parse(opts.Origin)
		if err != nil {
			return nil, fmt.Errorf("parse origin %q: %w", opts.Origin, err)
		}
		s.origin = u
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	s.walkHTML(doc)

	if s.page.EnvScript == "" {
		return &s.page, ErrNoEnvScript
	}
	env, err := globalenv.Decode(s.page.EnvScript,
		globalenv.WithPath(opts.EnvPath), globalenv.WithLogger(opts.Logger))
	if err != nil {
		return &s.page, fmt.Errorf("decode environment: %w", err)
	}
	s.page.Env = env
	if id, ok := env.BuildID(); ok {
		s.page.BuildID = id
	} else {
		opts.Logger.Warn("environment has no build id")
	}
	return &s.page, nil
}

func (s *scanner) walkHTML(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script":
			s.extractScript(n)
		case "link":
			s.extractLink(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walkHTML(c)
	}
}

func (s *scanner) extractScript(n *html.Node) {
	if src := getAttr(n, "src"); src != "" {
		if name, ok := s.assetName(src); ok {
			s.page.EntryScripts = append(s.page.EntryScripts, name)
		}
		return
	}
	if s.page.EnvScript != "" {
		return
	}
	text := textContent(n)
	if strings.Contains(text, s.opts.EnvPath+" =") || strings.Contains(text, s.opts.EnvPath+"=") {
		s.page.EnvScript = text
	}
}

func (s *scanner) extractLink(n *html.Node) {
	if getAttr(n, "rel") != "stylesheet" {
		return
	}
	if name, ok := s.assetName(getAttr(n, "href")); ok {
		s.page.Stylesheets = append(s.page.Stylesheets, name)
	}
}

// assetName returns the part of an asset URL after AssetsPrefix.
func (s *scanner) assetName(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || ref == "" {
		return "", false
	}
	if u.IsAbs() || u.Host != "" {
		if s.origin == nil || u.Host != s.origin.Host {
			return "", false
		}
	}
	if !strings.HasPrefix(u.Path, AssetsPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(u.Path, AssetsPrefix)
	return name, name != ""
}

// Helper functions.

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
