// Package console serves the clinic record pages behind the login guard.
package console

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mehmetcc/polyconsole/internal/api"
	"github.com/mehmetcc/polyconsole/internal/guard"
	"github.com/mehmetcc/polyconsole/internal/httpx"
	"github.com/mehmetcc/polyconsole/internal/person"
	"github.com/mehmetcc/polyconsole/internal/view"
	"go.uber.org/zap"
)

const maxFormBytes = 1 << 20

// Backend is the slice of the remote API the pages use.
type Backend interface {
	ListPatients(ctx context.Context) ([]api.Patient, error)
	GetPatient(ctx context.Context, id int64) (*api.PatientDetails, error)
	CreatePatient(ctx context.Context, in api.PatientInput) error
	UpdatePatient(ctx context.Context, id int64, in api.PatientInput) error

	ListDoctors(ctx context.Context) ([]api.Doctor, error)
	GetDoctor(ctx context.Context, id int64) (*api.DoctorDetails, error)
	CreateDoctor(ctx context.Context, in api.DoctorInput) error

	ListSections(ctx context.Context) ([]api.Section, error)
	GetSection(ctx context.Context, id int64) (*api.SectionDetails, error)
	CreateSection(ctx context.Context, in api.SectionInput) (*api.Section, error)
	DeleteSection(ctx context.Context, id int64) error

	CreateNurse(ctx context.Context, in api.NurseInput) error
	UpdateNurse(ctx context.Context, id int64, in api.NurseInput) error
	DeleteNurse(ctx context.Context, id int64) error

	ListSchedules(ctx context.Context) ([]api.Schedule, error)
	CreateSchedule(ctx context.Context, in api.ScheduleInput) error
	SchedulesBySpecialization(ctx context.Context, specialization string) ([]api.Schedule, error)

	ListVisits(ctx context.Context) ([]api.Visit, error)
	CreateVisit(ctx context.Context, in api.VisitInput) error
}

type Handler struct {
	backend   Backend
	view      *view.Renderer
	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(backend Backend, renderer *view.Renderer, logger *zap.Logger) *Handler {
	return &Handler{
		backend:   backend,
		view:      renderer,
		validator: newValidator(),
		logger:    logger,
	}
}

// Routes expects guard.Require to run in front of it.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	registrar := guard.Allow(person.Role.CanManageRecords, h.Forbidden)

	r.Get("/", h.Home)

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.Patients)
		r.With(registrar).Post("/", h.CreatePatient)
		r.Get("/{id}", h.Patient)
		r.With(registrar).Post("/{id}", h.UpdatePatient)
	})

	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", h.Doctors)
		r.With(registrar).Post("/", h.CreateDoctor)
		r.Get("/{id}", h.Doctor)
	})

	r.Route("/sections", func(r chi.Router) {
		r.Get("/", h.Sections)
		r.Get("/{id}", h.Section)
		r.Group(func(r chi.Router) {
			r.Use(registrar)
			r.Post("/", h.CreateSection)
			r.Post("/{id}/delete", h.DeleteSection)
			r.Post("/{id}/nurses", h.CreateNurse)
			r.Post("/{id}/nurses/{nurseID}", h.UpdateNurse)
			r.Post("/{id}/nurses/{nurseID}/delete", h.DeleteNurse)
		})
	})

	r.Route("/schedules", func(r chi.Router) {
		r.Use(guard.Allow(person.Role.CanViewSchedules, h.Forbidden))
		r.Get("/", h.Schedules)
		r.With(registrar).Post("/", h.CreateSchedule)
	})

	r.Route("/visits", func(r chi.Router) {
		r.Get("/", h.Visits)
		r.With(registrar).Post("/", h.CreateVisit)
	})

	r.NotFound(h.NotFound)
	return r
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, http.StatusOK, "home", h.page(r, "Polyclinic"))
}

func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Forbidden")
	p.Error = "Only registrars can change clinic records."
	h.view.Render(w, http.StatusForbidden, "error", p)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Not found")
	p.Error = "There is nothing at " + r.URL.Path + "."
	h.view.Render(w, http.StatusNotFound, "error", p)
}

var notices = map[string]string{
	"saved":   "Saved.",
	"deleted": "Deleted.",
}

func (h *Handler) page(r *http.Request, title string) view.Page {
	p := view.Page{Title: title, Notice: notices[r.URL.Query().Get("ok")]}
	if id, ok := guard.IdentityFromContext(r.Context()); ok {
		p.Identity = &id
	}
	return p
}

// failed renders a whole page for a call the page cannot do without.
func (h *Handler) failed(w http.ResponseWriter, r *http.Request, what string, err error) {
	h.logger.Warn("backend call failed", zap.String("what", what), zap.String("path", r.URL.Path), zap.Error(err))
	p := h.page(r, "Error")
	p.Error = "Error " + what + ": " + api.ErrorMessage(err)
	h.view.Render(w, statusFor(err), "error", p)
}

// statusFor maps a backend failure onto the status of the page reporting it.
func statusFor(err error) int {
	var re *api.RemoteError
	switch {
	case errors.As(err, &re):
		switch re.Status {
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return http.StatusUnprocessableEntity
		case http.StatusUnauthorized, http.StatusForbidden:
			return http.StatusForbidden
		case http.StatusNotFound:
			return http.StatusNotFound
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse form", zap.Error(err))
		p := h.page(r, "Bad request")
		p.Error = "The form could not be read."
		h.view.Render(w, http.StatusBadRequest, "error", p)
		return false
	}
	return true
}

// validate returns the inline messages for form, or nil when it is valid.
func (h *Handler) validate(form any) map[string]string {
	err := h.validator.Struct(form)
	if err == nil {
		return nil
	}
	h.logger.Debug("form validation failed", zap.Error(err))
	return httpx.FieldMessages(httpx.ValidationDetails(err))
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func seeOther(w http.ResponseWriter, r *http.Request, path, ok string) {
	http.Redirect(w, r, path+"?ok="+ok, http.StatusSeeOther)
}

func joinErrors(msgs ...string) string {
	out := msgs[:0]
	for _, m := range msgs {
		if m != "" {
			out = append(out, m)
		}
	}
	return strings.Join(out, " ")
}

const invalidForm = "Please correct the highlighted fields."
