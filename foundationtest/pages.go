package foundationtest

import (
	"fmt"
	"net/http"
	"net/url"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
)

// Page is the page object constructed for the page types below.
type Page struct {
	*foundation.BasePage
	Type string
}

func pageType(name, path string) *foundation.PageType {
	return &foundation.PageType{
		Name: name,
		Path: path,
		New: func(b *foundation.BasePage) foundation.Page {
			return &Page{BasePage: b, Type: name}
		},
	}
}

// Page types served by Handler.
var (
	Home   = pageType("Home", "")
	Other  = pageType("Other", "other")
	Search = pageType("Search", "search")
	Alert  = pageType("Alert", "alert")
)

var homePage = `
<html>
<head>
	<title>Selenium Foundation Test Site</title>
</head>
<body>
	The home page. <br />
	<form action="search">
		<input name="q" autofocus />
		<input name="submit" type="submit" id="submit" />
	</form>
	Link to the <a href="other">other page</a>.
</body>
</html>
`

var otherPage = `
<html>
<head>
	<title>Selenium Foundation Test Site - Other Page</title>
</head>
<body>
	The other page.
</body>
</html>
`

var searchPage = `
<html>
<head>
	<title>Selenium Foundation Test Site - Search Page</title>
</head>
<body>
	You searched for "%s". I'll pretend I've found valuable information.
</body>
</html>
`

var alertPage = `
<html>
<head>
	<title>Selenium Foundation Test Site - Alert Page</title>
</head>
<body>
	An alert.
	<script>
		alert("Hello world");
	</script>
</body>
</html>
`

// Handler serves the pages of the test site under any prefix ending in
// "/app/".
var Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	page, ok := map[string]string{
		"/app/":       homePage,
		"/app/other":  otherPage,
		"/app/search": searchPage,
		"/app/alert":  alertPage,
	}[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.URL.Path == "/app/search" {
		page = fmt.Sprintf(page, r.URL.Query().Get("q"))
	}
	fmt.Fprint(w, page)
})

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
