// Package web embeds the HTML templates and static assets into the binary,
// so the server runs from any working directory.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

// Templates is the template directory, rooted so that names are "base.html".
func Templates() fs.FS {
	return mustSub(templateFiles, "templates")
}

// Static is served under /static/.
func Static() fs.FS {
	return mustSub(staticFiles, "static")
}

// mustSub only fails on a malformed directory name, which is a programming error.
func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
