package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t testing.TB, doc string) *goquery.Document {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "  hello  ", expected: "hello"},
		{in: "a\n\t  b", expected: "a b"},
		{in: "​zero width", expected: "zero width"},
		{in: "", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, Normalize(test.in))
	}
}

func TestText(t *testing.T) {
	doc := parse(t, `<div>
		<p class="x"> Current   balance </p>
		<p class="x"><span>$1,024.00</span><script>var x = 1;</script></p>
	</div>`)
	require.Equal(t, "Current balance $1,024.00", Text(doc.Find("p.x")))
	require.Equal(t, "", Text(doc.Find("p.missing")))
}

func TestFormValues(t *testing.T) {
	doc := parse(t, `<form>
		<input type="hidden" name="logintoken" value="tok">
		<input name="username" value="">
		<input type="password" name="password">
		<input type="checkbox" name="remember" checked>
		<input type="checkbox" name="skip" value="1">
		<input type="submit" name="go" value="Log in">
		<select name="lang"><option value="en">English</option><option value="fr" selected>French</option></select>
		<textarea name="note">hi</textarea>
	</form>`)

	values := FormValues(doc.Find("form"))
	require.Equal(t, url.Values{
		"logintoken": {"tok"},
		"username":   {""},
		"password":   {""},
		"remember":   {"on"},
		"lang":       {"fr"},
		"note":       {"hi"},
	}, values)
}

func TestResolve(t *testing.T) {
	base, err := url.Parse("https://bank.example/login/index.php")
	require.NoError(t, err)

	resolved, err := Resolve(base, "/session")
	require.NoError(t, err)
	require.Equal(t, "https://bank.example/session", resolved.String())

	resolved, err = Resolve(base, "")
	require.NoError(t, err)
	require.Equal(t, base.String(), resolved.String())
}
