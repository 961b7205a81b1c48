package dictionary

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textexpander/internal/trie"
)

func boolPtr(b bool) *bool { return &b }

func TestCompileText(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		out   string
		chars int
	}{
		{"plain", "hello", "hello", 5},
		{"multibyte", "café", "café", 4},
		{"unicode escape", "{{u:00e9}}té", "été", 3},
		{"os commands", "{{cmd:mac}}a{{cmd:linux}}", "\x02a\x03", 1},
		{"escaped brace", `\{x}`, "{x}", 3},
		{"literal block", "a{{{{{cmd:win}}}}}b", "a{{{{{cmd:win}}}}}b", 13},
		{"unclosed literal", "a{{{bc", "a{{{bc", 6},
		{"bad unicode", "{{u:zz}}", "{{u:zz}}", 8},
		{"unknown command", "{{cmd:bsd}}", "{{cmd:bsd}}", 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, chars, _ := CompileText(tt.in)
			assert.Equal(t, tt.out, string(out))
			assert.Equal(t, tt.chars, chars)
		})
	}
}

func TestCompileTextWarnings(t *testing.T) {
	_, _, w := CompileText("{{u:110000}}")
	assert.Len(t, w, 1)
	_, _, w = CompileText("x{{{y")
	assert.Len(t, w, 1)
	_, _, w = CompileText("fine")
	assert.Empty(t, w)
}

func TestBuildRoundTrip(t *testing.T) {
	src := &Source{}
	want := map[string]string{}
	// Digits and letters p-y share root buckets, forcing entry chains.
	for _, c := range "abcdefghijklmnopqrstuvwxyz0123456789" {
		for _, suffix := range []string{"", "x", "yz"} {
			code := string(c) + suffix
			text := fmt.Sprintf("expansion of %s", code)
			src.Expansions = append(src.Expansions, Entry{ShortCode: code, Text: text})
			want[code] = text
		}
	}
	src.Expansions = append(src.Expansions, Entry{ShortCode: "größe", Text: "Größe"})
	want["größe"] = "Größe"

	tr, warnings, err := Build(src)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NoError(t, tr.Validate())
	assert.Equal(t, len("größe")+1, tr.MaxShortLen)

	for code, text := range want {
		id, ok := tr.Search(code)
		require.True(t, ok, "search %q", code)
		assert.Equal(t, text, string(tr.Text(id)), "text for %q", code)
		assert.Equal(t, utf8.RuneCountInString(text), int(tr.Node(id).LenChars))
	}

	var walked int
	tr.Walk(func(code string, id trie.NodeID) bool {
		walked++
		assert.Contains(t, want, code)
		return true
	})
	assert.Equal(t, len(want), walked)

	_, ok := tr.Search("gr")
	assert.False(t, ok, "prefix is not terminal")
	_, ok = tr.LookupNode("gr")
	assert.True(t, ok)
}

func TestBuildNormalizesAndSkips(t *testing.T) {
	src := &Source{
		DisablePreserveTrigger: true,
		Expansions: []Entry{
			{ShortCode: "TM", Text: "tomorrow"},
			{ShortCode: "a b", Text: "skipped"},
			{ShortCode: "sig", Text: "first"},
			{ShortCode: "sig", Text: "second", PreserveTrigger: boolPtr(true)},
		},
	}
	tr, warnings, err := Build(src)
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	id, ok := tr.Search("tm")
	require.True(t, ok)
	assert.False(t, tr.Node(id).PreserveTrigger)

	id, ok = tr.Search("sig")
	require.True(t, ok)
	assert.Equal(t, "second", string(tr.Text(id)))
	assert.True(t, tr.Node(id).PreserveTrigger)

	_, ok = tr.Search("a b")
	assert.False(t, ok)
}

func TestBuildPreserveDefault(t *testing.T) {
	tr, _, err := Build(&Source{Expansions: []Entry{{ShortCode: "x", Text: "y"}}})
	require.NoError(t, err)
	id, _ := tr.Search("x")
	assert.True(t, tr.Node(id).PreserveTrigger)
}

func TestBuildEmpty(t *testing.T) {
	tr, _, err := Build(&Source{})
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Len())
	_, ok := tr.Search("a")
	assert.False(t, ok)
}

func TestBucketCount(t *testing.T) {
	assert.Equal(t, 1, bucketCount(1))
	assert.Equal(t, 2, bucketCount(2))
	assert.Equal(t, 4, bucketCount(3))
	assert.Equal(t, 128, bucketCount(200))
}

const tomlSource = `
disable_preserve_trigger = false

[[expansions]]
short_code = "tm"
text = "tomorrow"

[[expansions]]
short_code = "@@"
text = "user@example.com"
preserve_trigger = false
`

const yamlSource = `
expansions:
  - short_code: tm
    text: tomorrow
  - short_code: "@@"
    text: user@example.com
    preserve_trigger: false
`

const jsonSource = `{
  "expansions": [
    {"short_code": "tm", "text": "tomorrow"},
    {"short_code": "@@", "text": "user@example.com", "preserve_trigger": false}
  ]
}`

func TestParseFormats(t *testing.T) {
	for format, data := range map[Format]string{
		FormatTOML: tomlSource,
		FormatYAML: yamlSource,
		FormatJSON: jsonSource,
	} {
		t.Run(string(format), func(t *testing.T) {
			src, err := Parse([]byte(data), format)
			require.NoError(t, err)
			require.Len(t, src.Expansions, 2)
			assert.Equal(t, "tm", src.Expansions[0].ShortCode)
			assert.Nil(t, src.Expansions[0].PreserveTrigger)
			require.NotNil(t, src.Expansions[1].PreserveTrigger)
			assert.False(t, *src.Expansions[1].PreserveTrigger)
		})
	}
}

func TestParseSchemaRejects(t *testing.T) {
	bad := []string{
		`{"expansions": [{"short_code": "tm"}]}`,
		`{"expansions": [{"short_code": "", "text": "x"}]}`,
		`{"expansions": [{"short_code": "tm", "text": "x", "extra": 1}]}`,
		`{"entries": []}`,
		`{"expansions": "nope"}`,
	}
	for _, doc := range bad {
		_, err := Parse([]byte(doc), FormatJSON)
		assert.Error(t, err, doc)
	}
}

func TestOpenSourceAndArtifact(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "dict.toml")
	require.NoError(t, os.WriteFile(srcPath, []byte(tomlSource), 0644))

	tr, _, err := Open(srcPath)
	require.NoError(t, err)
	text, ok := tr.Lookup("tm")
	require.True(t, ok)
	assert.Equal(t, "tomorrow", string(text))

	artifactPath := filepath.Join(dir, "dict.json")
	require.NoError(t, tr.Save(artifactPath))
	loaded, _, err := Open(artifactPath)
	require.NoError(t, err)
	text, ok = loaded.Lookup("@@")
	require.True(t, ok)
	assert.Equal(t, "user@example.com", string(text))

	jsonPath := filepath.Join(dir, "source.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(jsonSource), 0644))
	fromJSON, _, err := Open(jsonPath)
	require.NoError(t, err)
	_, ok = fromJSON.Search("tm")
	assert.True(t, ok)

	_, _, err = Open(filepath.Join(dir, "dict.ini"))
	assert.Error(t, err)
}
