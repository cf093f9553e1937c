package globalenv

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const exampleEnv = `window.GLOBAL_ENV = {
    API_ENDPOINT: '//discord.com/api',
    API_VERSION: 9,
    "GATEWAY_ENDPOINT": "wss://gateway.discord.gg",
    WEBAPP_ENDPOINT: "//discord.com",
    CDN_HOST: ` + "`cdn.discordapp.com`" + `,
    RELEASE_CHANNEL: "stable",
    HTML_TIMESTAMP: Date.now(),
    ALGOLIA_KEY: null,
    PUBLIC_PATH: "/assets/",
    SENTRY_TAGS: {"buildId":"7ea92cf","buildType":"normal"},
    MIGRATION_DESTINATION_ORIGIN: "https://discord.com",
    FEATURES: ["a", 2, true, [false]],
    MAX: 10n,
    HEX: 0x1F,
    [computed]: 1,
    ...spread,
    shorthand,
    nested: {[deep]: 1, ok: "yes!"},
};
`

func TestDecodeExampleEnv(t *testing.T) {
	env, err := Decode(exampleEnv)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	wantKeys := []string{
		"API_ENDPOINT", "API_VERSION", "GATEWAY_ENDPOINT", "WEBAPP_ENDPOINT", "CDN_HOST",
		"RELEASE_CHANNEL", "HTML_TIMESTAMP", "ALGOLIA_KEY", "PUBLIC_PATH", "SENTRY_TAGS",
		"MIGRATION_DESTINATION_ORIGIN", "FEATURES", "MAX", "HEX", "nested",
	}
	if diff := cmp.Diff(wantKeys, env.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	checks := []struct {
		key  string
		want Value
	}{
		{"API_ENDPOINT", String("//discord.com/api")},
		{"API_VERSION", Number(9)},
		{"GATEWAY_ENDPOINT", String("wss://gateway.discord.gg")},
		{"CDN_HOST", String("cdn.discordapp.com")},
		{"HTML_TIMESTAMP", Opaque{Source: "Date.now()"}},
		{"ALGOLIA_KEY", Null{}},
		{"FEATURES", Array{String("a"), Number(2), Bool(true), Array{Bool(false)}}},
		{"MAX", BigInt("10")},
		{"HEX", Number(31)},
	}
	for _, c := range checks {
		got, ok := env.Get(c.key)
		if !ok {
			t.Errorf("%s missing", c.key)
			continue
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", c.key, diff)
		}
	}

	nested, _ := env.Get("nested")
	if ok, _ := nested.(*Object).Get("ok"); ok != String("yes!") {
		t.Errorf("nested.ok = %#v, want yes!", ok)
	}

	if diff := cmp.Diff([]string{"[computed]", "<unknown>", "shorthand", "[deep]"}, env.Unreadable); diff != "" {
		t.Errorf("unreadable keys mismatch (-want +got):\n%s", diff)
	}

	id, ok := env.BuildID()
	if !ok || id != "7ea92cf" {
		t.Errorf("BuildID() = %q, %v; want 7ea92cf, true", id, ok)
	}
}

func TestDecodeNotFound(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing path", `window.OTHER = {};`},
		{"not assigned", `console.log(window.GLOBAL_ENV);`},
		{"compound assignment", `window.GLOBAL_ENV += {};`},
		{"not an object", `window.GLOBAL_ENV = load();`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.text)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Decode error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDecodeCustomPath(t *testing.T) {
	env, err := Decode(`self.__ENV__ = {a: 1};`, WithPath("self.__ENV__"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v, _ := env.Get("a"); v != Number(1) {
		t.Errorf("a = %#v, want 1", v)
	}
	if _, ok := env.BuildID(); ok {
		t.Error("BuildID() reported a build id for an env without SENTRY_TAGS")
	}
}

func TestToJSON(t *testing.T) {
	obj := &Object{Members: []Member{
		{Key: "s", Value: String("x")},
		{Key: "n", Value: Array{Number(1), Null{}}},
		{Key: "o", Value: Opaque{Source: "f()"}},
	}}
	want := map[string]any{
		"s": "x",
		"n": []any{1.0, nil},
		"o": map[string]any{"expression": "f()"},
	}
	if diff := cmp.Diff(want, ToJSON(obj)); diff != "" {
		t.Errorf("ToJSON mismatch (-want +got):\n%s", diff)
	}
}
