package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, html string) *goquery.Document {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestCleanText(t *testing.T) {
	d := doc(t, `<p>  Дискретная   математика  </p>`)
	assert.Equal(t, "Дискретная математика", CleanText(d.Find("p")))
}

func TestGetAnchors(t *testing.T) {
	d := doc(t, `
		<div>
			<a href="/lms/course/view.php?id=7">  Физика
			</a>
			<a href="https://lms.mtuci.ru/lms/pluginfile.php/1/a.pdf">задание.pdf</a>
		</div>`)

	anchors := GetAnchors(d.Find("a[href]"))
	require.Len(t, anchors, 2)
	assert.Equal(t, Anchor{Name: "Физика", Href: "/lms/course/view.php?id=7"}, anchors[0])
	assert.Equal(t, "задание.pdf", anchors[1].Name)
}

func TestResolveHref(t *testing.T) {
	base, err := url.Parse("https://lms.mtuci.ru")
	require.NoError(t, err)

	assert.Equal(t,
		"https://lms.mtuci.ru/lms/mod/assign/view.php?id=5",
		ResolveHref(base, "/lms/mod/assign/view.php?id=5"))
	assert.Equal(t,
		"https://other.example/x",
		ResolveHref(base, "https://other.example/x"))
}
