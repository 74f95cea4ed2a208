package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/edutest/internal/api/respond"
	"github.com/mind-engage/edutest/internal/catalog"
	"github.com/mind-engage/edutest/internal/storage"
)

const maxPhotoBytes = 5 << 20

// POST /users/me/photo  (multipart form, field "file")
func UploadPhotoHandler(svc *catalog.Service, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+1<<20)
		f, _, err := r.FormFile("file")
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}
		if len(data) > maxPhotoBytes {
			respond.Error(w, http.StatusRequestEntityTooLarge, "photo larger than 5MB")
			return
		}
		if !strings.HasPrefix(http.DetectContentType(data), "image/") {
			respond.Error(w, http.StatusBadRequest, "photo must be an image")
			return
		}
		if _, err := bs.Put(storage.PhotoKey(u.ID), bytes.NewReader(data)); err != nil {
			respond.Error(w, http.StatusInternalServerError, "store error: "+err.Error())
			return
		}
		url := "/users/" + u.ID + "/photo"
		out, err := svc.UpdateProfile(r.Context(), u, catalog.ProfileUpdate{PhotoURL: &url})
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, out)
	}
}

// GET /users/{userID}/photo
func GetPhotoHandler(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := bs.Get(storage.PhotoKey(chi.URLParam(r, "userID")))
		if err != nil {
			writeErr(w, err)
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(data))
		_, _ = w.Write(data)
	}
}
