package console

import (
	"net/http"

	"github.com/mehmetcc/polyconsole/internal/api"
	"go.uber.org/zap"
)

type visitsData struct {
	Visits   []api.Visit
	Patients []api.Patient
	Doctors  []api.Doctor
}

func (h *Handler) Visits(w http.ResponseWriter, r *http.Request) {
	h.renderVisits(w, r, http.StatusOK, visitForm{}, nil, "")
}

func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	form := visitFormFrom(r)
	if fields := h.validate(form); fields != nil {
		h.renderVisits(w, r, http.StatusUnprocessableEntity, form, fields, invalidForm)
		return
	}
	if err := h.backend.CreateVisit(r.Context(), form.input()); err != nil {
		h.logger.Warn("failed to save visit", zap.Error(err))
		h.renderVisits(w, r, statusFor(err), form, nil, "Error saving visit: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, "/visits", "saved")
}

func (h *Handler) renderVisits(w http.ResponseWriter, r *http.Request, status int, form visitForm, fields map[string]string, errMsg string) {
	ctx := r.Context()
	p := h.page(r, "Visits")
	p.Form, p.Fields = form, fields
	var data visitsData

	visits, err := h.backend.ListVisits(ctx)
	if err != nil {
		h.logger.Warn("failed to load visits", zap.Error(err))
		errMsg = joinErrors(errMsg, "Error loading visits: "+api.ErrorMessage(err))
		if status == http.StatusOK {
			status = statusFor(err)
		}
	}
	data.Visits = visits

	if p.Registrar() {
		if data.Patients, err = h.backend.ListPatients(ctx); err != nil {
			h.logger.Warn("failed to load patients", zap.Error(err))
			errMsg = joinErrors(errMsg, "Error loading patients: "+api.ErrorMessage(err))
		}
		if data.Doctors, err = h.backend.ListDoctors(ctx); err != nil {
			h.logger.Warn("failed to load doctors", zap.Error(err))
			errMsg = joinErrors(errMsg, "Error loading doctors: "+api.ErrorMessage(err))
		}
	}

	p.Error = errMsg
	p.Data = data
	h.view.Render(w, status, "visits", p)
}
