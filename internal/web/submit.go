package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// multipartOverhead is allowed on top of the image limit for the other
// form fields and multipart framing.
const multipartOverhead = 64 << 10

// submitForm is the state of a submission page: the values entered so far
// and one message per invalid field.
type submitForm struct {
	PageData
	Kind        string
	Name        string
	Category    string
	Description string
	MaxSize     string

	NameError     string
	CategoryError string
	ImageError    string
}

func (f *submitForm) valid() bool {
	return f.NameError == "" && f.CategoryError == "" && f.ImageError == ""
}

func (s *Server) newSubmitForm(r *http.Request, kind string) *submitForm {
	title := "Sign the yearbook"
	if kind == model.KindMemory {
		title = "Share a memory"
	}
	return &submitForm{
		PageData: pageData(r, title),
		Kind:     kind,
		Category: model.CategoryStudent,
		MaxSize:  humanize.IBytes(uint64(s.maxUpload())),
	}
}

func (s *Server) maxUpload() int {
	if s.Images.MaxBytes > 0 {
		return s.Images.MaxBytes
	}
	return imaging.MaxUploadBytes
}

// SignatureFormPage handles GET /submit/signature.
func (s *Server) SignatureFormPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "submit.html", s.newSubmitForm(r, model.KindSignature))
}

// MemoryFormPage handles GET /submit/memory.
func (s *Server) MemoryFormPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "submit.html", s.newSubmitForm(r, model.KindMemory))
}

// SignatureSubmit handles POST /submit/signature.
func (s *Server) SignatureSubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, model.KindSignature)
}

// MemorySubmit handles POST /submit/memory.
func (s *Server) MemorySubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, model.KindMemory)
}

// submit validates an upload form, creates a pending item and redirects to
// the board with a thank-you message. Invalid forms are shown again with
// the entered values and inline errors; nothing is stored.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, kind string) {
	form := s.newSubmitForm(r, kind)
	limit := s.maxUpload()
	tooLarge := "The image is larger than " + form.MaxSize + "."

	r.Body = http.MaxBytesReader(w, r.Body, int64(limit+multipartOverhead))
	err := r.ParseMultipartForm(int64(limit))
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		form.ImageError = tooLarge
		s.Templates.RenderStatus(w, http.StatusRequestEntityTooLarge, "submit.html", form)
		return
	case err != nil && !errors.Is(err, http.ErrNotMultipart):
		slog.Warn("unreadable submission", "kind", kind, "error", err)
		form.ImageError = "The upload could not be read. Please try again."
		s.Templates.RenderStatus(w, http.StatusBadRequest, "submit.html", form)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	form.Name = r.FormValue("name")
	if kind == model.KindSignature {
		form.Category = r.FormValue("type")
	} else {
		form.Category = ""
		form.Description = r.FormValue("description")
	}

	name, err := model.NormalizeName(form.Name)
	if err != nil {
		form.NameError = "Please enter a name."
	}
	if kind == model.KindSignature && !model.ValidCategory(form.Category) {
		form.CategoryError = "Choose student or teacher."
	}

	file, header, err := r.FormFile("image")
	switch {
	case err != nil:
		form.ImageError = "Please choose an image."
	case header.Size > int64(limit):
		form.ImageError = tooLarge
	}
	if file != nil {
		defer file.Close()
	}

	if !form.valid() {
		s.Templates.RenderStatus(w, http.StatusBadRequest, "submit.html", form)
		return
	}

	res, err := imaging.Process(file, kind, s.Images)
	if err != nil {
		if errors.Is(err, imaging.ErrTooLarge) {
			form.ImageError = tooLarge
		} else {
			slog.Warn("submission image rejected", "kind", kind, "error", err)
			form.ImageError = "Only PNG and JPEG images are accepted."
		}
		s.Templates.RenderStatus(w, http.StatusBadRequest, "submit.html", form)
		return
	}

	item, err := store.CreateItem(r.Context(), s.DB, store.NewItem{
		Kind:        kind,
		Name:        name,
		Category:    form.Category,
		Description: form.Description,
		Image:       res.Data,
		ImageMIME:   res.MIME,
	})
	if err != nil {
		slog.Error("failed to store submission", "kind", kind, "error", err)
		form.Error = flashMessages["failed"]
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "submit.html", form)
		return
	}

	slog.Info("submission received", "kind", kind, "id", item.ID, "name", item.Name)
	code := "signed"
	if kind == model.KindMemory {
		code = "shared"
	}
	redirect(w, r, "/", "ok", code)
}
