package console

import (
	"net/http"

	"github.com/mehmetcc/polyconsole/internal/api"
	"go.uber.org/zap"
)

type doctorsData struct {
	Doctors  []api.Doctor
	Sections []api.Section
}

func (h *Handler) Doctors(w http.ResponseWriter, r *http.Request) {
	h.renderDoctors(w, r, http.StatusOK, doctorForm{}, nil, "")
}

func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	form := doctorFormFrom(r)
	if fields := h.validate(form); fields != nil {
		h.renderDoctors(w, r, http.StatusUnprocessableEntity, form, fields, invalidForm)
		return
	}
	if err := h.backend.CreateDoctor(r.Context(), form.input()); err != nil {
		h.logger.Warn("failed to save doctor", zap.Error(err))
		h.renderDoctors(w, r, statusFor(err), form, nil, "Error saving doctor: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, "/doctors", "saved")
}

func (h *Handler) renderDoctors(w http.ResponseWriter, r *http.Request, status int, form doctorForm, fields map[string]string, errMsg string) {
	p := h.page(r, "Doctors")
	p.Form, p.Fields = form, fields
	var data doctorsData

	doctors, err := h.backend.ListDoctors(r.Context())
	if err != nil {
		h.logger.Warn("failed to load doctors", zap.Error(err))
		errMsg = joinErrors(errMsg, "Error loading doctors: "+api.ErrorMessage(err))
		if status == http.StatusOK {
			status = statusFor(err)
		}
	}
	data.Doctors = doctors

	// The section picker is only on the registrar's form.
	if p.Registrar() {
		sections, err := h.backend.ListSections(r.Context())
		if err != nil {
			h.logger.Warn("failed to load sections", zap.Error(err))
			errMsg = joinErrors(errMsg, "Error loading sections: "+api.ErrorMessage(err))
		}
		data.Sections = sections
	}

	p.Error = errMsg
	p.Data = data
	h.view.Render(w, status, "doctors", p)
}

func (h *Handler) Doctor(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	details, err := h.backend.GetDoctor(r.Context(), id)
	if err != nil {
		h.failed(w, r, "loading doctor", err)
		return
	}
	p := h.page(r, details.Doctor.FullName)
	p.Data = details
	h.view.Render(w, http.StatusOK, "doctor", p)
}
