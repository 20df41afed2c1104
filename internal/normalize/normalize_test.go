package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEntities(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want string
	}{
		"plain text untouched": {in: "hello world", want: "hello world"},
		"named entities":       {in: "Fish &amp; Chips", want: "Fish & Chips"},
		"decimal entities":     {in: "caf&#233;", want: "café"},
		"hex entities":         {in: "caf&#xe9;", want: "café"},
		"double encoded":       {in: "&amp;lt;div&amp;gt;", want: "<div>"},
		"mixed encoding depth": {in: "A &amp;amp; B &amp; C", want: "A & B & C"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DecodeEntities(tc.in))
		})
	}
}

func TestDecodeEntities_Idempotent(t *testing.T) {
	t.Parallel()

	samples := []string{
		"hello world",
		"&amp;lt;div&amp;gt;",
		"Fish &amp; Chips &#38; more",
		"no entities at all, just text with & ampersand",
	}
	for _, s := range samples {
		once := DecodeEntities(s)
		require.Equal(t, once, DecodeEntities(once), "input: %q", s)
	}
}

func TestStripHTML_MarkdownConversion(t *testing.T) {
	t.Parallel()

	in := `<h1>Senior Engineer</h1><p>Hello <b>world</b></p>`
	require.Equal(t, "# Senior Engineer\n\nHello **world**", StripHTML(in))

	in = `<ul><li>One</li><li>Two</li></ul>`
	require.Equal(t, "- One\n- Two", StripHTML(in))

	in = `<p>See <a href="https://example.com/job">the posting</a> for details.</p>`
	require.Equal(t, "See [the posting](https://example.com/job) for details.", StripHTML(in))

	in = `<h2>About</h2><p><em>Remote</em> friendly</p>`
	require.Equal(t, "## About\n\n*Remote* friendly", StripHTML(in))
}

func TestStripHTML_RemovesChrome(t *testing.T) {
	t.Parallel()

	in := `<p>Build crawlers in Go.</p><script>var tracker = init();</script><style>.job{color:red}</style><nav>Home</nav>`
	require.Equal(t, "Build crawlers in Go.", StripHTML(in))

	in = `<p>Visible</p><!-- hidden comment --><iframe src="ad"></iframe>`
	require.Equal(t, "Visible", StripHTML(in))
}

func TestStripHTML_CollapsesBlankLines(t *testing.T) {
	t.Parallel()

	in := "<p>First</p>\n\n\n\n<p>Second</p>"
	out := StripHTML(in)
	require.NotContains(t, out, "\n\n\n")
	require.Equal(t, "First\n\nSecond", out)
}

func TestStripHTML_Truncates(t *testing.T) {
	t.Parallel()

	in := "<p>" + strings.Repeat("a", MaxDescriptionLength+500) + "</p>"
	out := StripHTML(in)
	require.Len(t, []rune(out), MaxDescriptionLength)
}

func TestStripHTML_Idempotent(t *testing.T) {
	t.Parallel()

	samples := []string{
		`<h1>Title</h1><p>Hello <b>world</b></p>`,
		`<ul><li>One</li><li>Two</li></ul>`,
		`<p>See <a href="https://x.dev">link</a>.</p>`,
		"plain text, no markup at all",
		"<div><div><div>deeply nested</div></div></div>",
	}
	for _, s := range samples {
		once := StripHTML(s)
		require.Equal(t, once, StripHTML(once), "input: %q", s)
	}
}

func TestRemoveNoise_Patterns(t *testing.T) {
	t.Parallel()

	base := "Great role working on protocol design and consensus systems."

	cases := map[string]string{
		"recommendation widget": base + "\n\nYou might also like\nStaff Engineer at Acme\nBackend Dev at Beta",
		"salary comparison":     base + "\n\nCompare salaries for this role in your region and see market data",
		"cookie banner":         base + "\n\nWe use cookies to improve your experience. Accept all cookies to continue",
		"apply boilerplate":     base + "\n\nApply now\n\n",
		"newsletter prompt":     base + "\n\nSubscribe to our newsletter for weekly job drops",
		"share buttons":         base + "\n\nShare this job\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out := RemoveNoise(in)
			require.Equal(t, base, strings.TrimSpace(out))
		})
	}
}

func TestRemoveNoise_ScriptAndCSSLeakage(t *testing.T) {
	t.Parallel()

	in := "We ship infrastructure for onchain settlement daily.\n\nwindow.dataLayer = window.dataLayer || [];\n\n.job-card { padding: 4px; }"
	out := RemoveNoise(in)
	require.Equal(t, "We ship infrastructure for onchain settlement daily.", strings.TrimSpace(out))
}

func TestRemoveNoise_TooShortBecomesEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, RemoveNoise("Apply now"))
	require.Empty(t, RemoveNoise("short blurb"))
	require.NotEmpty(t, RemoveNoise("A description long enough to be considered a real posting body."))
}

func TestClean_FullPipeline(t *testing.T) {
	t.Parallel()

	in := `&amp;lt;h2&amp;gt;About&amp;lt;/h2&amp;gt;<p>We build <b>consensus</b> engines for settlement layers.</p><script>track()</script>`
	out := Clean(in)
	require.Contains(t, out, "## About")
	require.Contains(t, out, "**consensus**")
	require.NotContains(t, out, "track()")
	require.NotContains(t, out, "<")
}

func TestNormalizeTitleKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "qa", NormalizeTitleKey("qa!!"))
	require.Equal(t, "qa", NormalizeTitleKey("QA"))
	require.Equal(t, "senior dev remote", NormalizeTitleKey("Senior Dev (Remote)"))
	require.Equal(t, NormalizeTitleKey("QA Engineer"), NormalizeTitleKey("  qa---engineer "))
	require.Empty(t, NormalizeTitleKey("!!!"))
}

func TestNoiseTable(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3, NoiseTableVersion())
	names := map[string]bool{}
	for _, p := range Patterns() {
		require.NotEmpty(t, p.Name)
		require.NotNil(t, p.Pattern)
		require.False(t, names[p.Name], "duplicate pattern name %q", p.Name)
		names[p.Name] = true
	}
}
