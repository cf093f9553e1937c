package html

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const page = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="/assets/app.4f1c.css">
  <link rel="icon" href="/assets/favicon.ico">
  <script nonce="abc">
    window.GLOBAL_ENV = {
      API_VERSION: 9,
      PUBLIC_PATH: "/assets/",
      SENTRY_TAGS: {"buildId": "7ea92cf", "buildType": "normal"},
    };
  </script>
</head>
<body>
  <div id="app-mount"></div>
  <script src="/assets/web.0e1a.js" defer></script>
  <script src="https://example.com/assets/sentry.9d2b.js" defer></script>
  <script src="https://cdn.other.com/assets/tracker.js"></script>
  <script src="/static/legacy.js"></script>
</body>
</html>`

func TestScan(t *testing.T) {
	got, err := Scan(strings.NewReader(page), Options{Origin: "https://example.com"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.BuildID != "7ea92cf" {
		t.Errorf("BuildID = %q, want %q", got.BuildID, "7ea92cf")
	}
	if diff := cmp.Diff([]string{"web.0e1a.js", "sentry.9d2b.js"}, got.EntryScripts); diff != "" {
		t.Errorf("EntryScripts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"app.4f1c.css"}, got.Stylesheets); diff != "" {
		t.Errorf("Stylesheets mismatch (-want +got):\n%s", diff)
	}
	if got.Env == nil || !strings.Contains(got.EnvScript, "window.GLOBAL_ENV") {
		t.Errorf("environment script not captured: %q", got.EnvScript)
	}
	if _, ok := got.Env.Get("API_VERSION"); !ok {
		t.Error("decoded environment lacks API_VERSION")
	}
}

func TestScanWithoutOrigin(t *testing.T) {
	got, err := Scan(strings.NewReader(page), Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if diff := cmp.Diff([]string{"web.0e1a.js"}, got.EntryScripts); diff != "" {
		t.Errorf("absolute URLs need an origin (-want +got):\n%s", diff)
	}
}

func TestScanNoEnvScript(t *testing.T) {
	got, err := Scan(strings.NewReader(`<html><script src="/assets/a.js"></script></html>`), Options{})
	if !errors.Is(err, ErrNoEnvScript) {
		t.Fatalf("error = %v, want ErrNoEnvScript", err)
	}
	if diff := cmp.Diff([]string{"a.js"}, got.EntryScripts); diff != "" {
		t.Errorf("entry scripts should still be listed (-want +got):\n%s", diff)
	}
}

func TestScanCustomEnvPath(t *testing.T) {
	doc := `<script>self.ENV = {SENTRY_TAGS: {buildId: "b1"}};</script>`
	got, err := Scan(strings.NewReader(doc), Options{EnvPath: "self.ENV"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.BuildID != "b1" {
		t.Errorf("BuildID = %q, want b1", got.BuildID)
	}
}
