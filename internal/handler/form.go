package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/service"
)

// Request body limits.
const (
	maxFormBytes      = 1 << 20 // plain forms and JSON bodies
	multipartOverhead = 1 << 20 // text fields and part headers around the files
	multipartMemory   = 8 << 20 // parts beyond this spill to temp files
)

var errUploadTooLarge = errors.New("upload too large")

// isJSON reports whether the request body is JSON.
func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// formValues reads a urlencoded or JSON body into url.Values so handlers can
// treat both the same way. JSON scalars are converted to strings; nested
// values are rejected.
func formValues(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	if !isJSON(r) {
		if err := r.ParseForm(); err != nil {
			return nil, apperror.ValidationFailed("", "Invalid form data")
		}
		return r.PostForm, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, apperror.ValidationFailed("", "Invalid JSON body")
	}
	values := make(url.Values, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			values.Set(k, v)
		case bool:
			values.Set(k, strconv.FormatBool(v))
		case float64:
			values.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		case nil:
		default:
			return nil, apperror.ValidationFailed(k, fmt.Sprintf("Invalid value for %s", k))
		}
	}
	return values, nil
}

// checked interprets a checkbox or JSON boolean.
func checked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// parseMultipart parses an upload form holding at most maxFiles images.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxFiles int) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*service.MaxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errUploadTooLarge
		}
		return apperror.ValidationFailed("", "Invalid upload form")
	}
	return nil
}

// openUploads opens every file in field. The caller must call the returned
// close function, also on error.
func openUploads(r *http.Request, field string) ([]service.Upload, func(), error) {
	var (
		headers []*multipart.FileHeader
		files   []multipart.File
	)
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File[field]
	}
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("opening upload %q: %w", fh.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

// singleUpload returns the one file in field. Zero or several files is a
// validation error.
func singleUpload(r *http.Request, field string) (service.Upload, func(), error) {
	uploads, closeAll, err := openUploads(r, field)
	if err != nil {
		return service.Upload{}, closeAll, err
	}
	if len(uploads) != 1 {
		return service.Upload{}, closeAll, apperror.ValidationFailed(field, "Please upload exactly one image")
	}
	return uploads[0], closeAll, nil
}

// wantsHTML reports whether the request came from a plain browser form
// rather than from app.js, which always asks for JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
