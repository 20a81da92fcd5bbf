package handler

import (
	"errors"
	"net/http"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/upload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/usecase"
)

// multipartOverhead is the room left for form fields and part headers next to the image.
const multipartOverhead = 64 << 10

func (h *authHTTPHandler) faceRegister(w http.ResponseWriter, r *http.Request) {
	defer removeMultipartForm(r)

	image, err := h.receiveImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.faceUsecase.Register(r.Context(), r.FormValue("userId"), image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Face registered successfully", result)
}

func (h *authHTTPHandler) faceLogin(w http.ResponseWriter, r *http.Request) {
	defer removeMultipartForm(r)

	image, err := h.receiveImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.faceUsecase.Login(r.Context(), image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.binder.Attach(w, result.Tokens)
	writeSuccess(w, http.StatusOK, "Face authentication successful", payload.FaceLoginResponse{
		User:        result.User.Public(),
		AccessToken: result.Tokens.AccessToken,
	})
}

// receiveImage parses the multipart form and moves its image part into a pending upload.
// A request without an image yields a nil PendingImage so the use case reports it.
func (h *authHTTPHandler) receiveImage(w http.ResponseWriter, r *http.Request) (usecase.PendingImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartOverhead)

	if err := r.ParseMultipartForm(h.uploads.MaxBytes()); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, upload.ErrImageTooLarge
		}

		return nil, errors.Join(errMalformedBody, err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}

		return nil, errors.Join(errMalformedBody, err)
	}
	defer file.Close()

	pending, err := h.uploads.Save(file)
	if err != nil {
		return nil, err
	}

	return pending, nil
}

// removeMultipartForm deletes the temporary files the multipart parser spilled to disk.
func removeMultipartForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
