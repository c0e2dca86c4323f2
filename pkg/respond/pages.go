package respond

import (
	"fmt"
	"net/http"
)

// uploadFormPage is served for GET / and for GET of any path that resolves
// to a directory: a minimal HTML form POSTing a file to the root directory.
const uploadFormPage = `<!DOCTYPE html>
<html>
<head><title>Verm</title></head>
<body>
<h1>Verm</h1>
<form method="POST" action="/default" enctype="multipart/form-data">
<input type="file" name="uploaded_file">
<input type="submit" value="Upload">
</form>
</body>
</html>
`

// WriteUploadForm serves the upload form page, used for "/" and for any
// stored path that turns out to be a directory.
func WriteUploadForm(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, uploadFormPage)
}

// WriteNotFound serves Verm's 404 page, used for any GET/HEAD whose path
// can't be resolved to a stored file or directory.
func WriteNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, "<!DOCTYPE html><html><head><title>Not Found</title></head>"+
		"<body><h1>Not Found</h1></body></html>\n")
}

// WriteCreated serves a 201 Created response for a successful store,
// pointing the client at the canonical URL the upload was saved under.
func WriteCreated(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>Created</title></head>"+
		"<body><h1>Created</h1><p>%s</p></body></html>\n", location)
}

// WriteSeeOther redirects r's client to location after a successful,
// redirect-requested store.
func WriteSeeOther(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// WriteWrongPath serves Verm's 403 page for a PUT whose URL doesn't match
// the canonical form for the uploaded bytes, or for any other path judged
// unsafe (contains "..", too long, malformed PUT target).
func WriteWrongPath(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprint(w, "<!DOCTYPE html><html><head><title>Wrong path</title></head>"+
		"<body><h1>Wrong path</h1><p>The path given does not match the canonical "+
		"URL for this content.</p></body></html>\n")
}
