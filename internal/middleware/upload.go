package middleware

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
)

// LimitUpload caps the request body at maxMB megabytes and parses multipart
// forms while the cap is in place. It must run before anything that reads
// form values, such as the CSRF check, or those readers parse the body
// without a limit.
func LimitUpload(maxMB int64) func(http.Handler) http.Handler {
	maxBytes := maxMB << 20
	tooLarge := fmt.Sprintf("Upload is larger than %d MB.", maxMB)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, tooLarge, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			if isMultipart(r) {
				if err := r.ParseMultipartForm(maxBytes); err != nil {
					var maxErr *http.MaxBytesError
					if errors.As(err, &maxErr) {
						http.Error(w, tooLarge, http.StatusRequestEntityTooLarge)
						return
					}
					http.Error(w, "Invalid form data", http.StatusBadRequest)
					return
				}
				defer r.MultipartForm.RemoveAll()
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isMultipart(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
