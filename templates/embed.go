// Package templates holds the setup pages served by the Alpaca server.
package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var FS embed.FS

var funcs = template.FuncMap{
	// checked renders the attribute of a selected checkbox.
	"checked": func(on bool) template.HTMLAttr {
		if on {
			return "checked"
		}
		return ""
	},
}

// LoadTemplates parses the server setup page and the device setup pages.
// Pages are looked up by file name, e.g. "telescope_setup.html".
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(FS, "*.html")
}
