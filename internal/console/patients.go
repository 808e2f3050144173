package console

import (
	"net/http"
	"strconv"

	"github.com/mehmetcc/polyconsole/internal/api"
	"go.uber.org/zap"
)

type patientsData struct {
	Patients []api.Patient
}

func (h *Handler) Patients(w http.ResponseWriter, r *http.Request) {
	h.renderPatients(w, r, http.StatusOK, patientForm{}, nil, "")
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	form := patientFormFrom(r)
	if fields := h.validate(form); fields != nil {
		h.renderPatients(w, r, http.StatusUnprocessableEntity, form, fields, invalidForm)
		return
	}
	if err := h.backend.CreatePatient(r.Context(), form.input()); err != nil {
		h.logger.Warn("failed to save patient", zap.Error(err))
		h.renderPatients(w, r, statusFor(err), form, nil, "Error saving patient: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, "/patients", "saved")
}

func (h *Handler) renderPatients(w http.ResponseWriter, r *http.Request, status int, form patientForm, fields map[string]string, errMsg string) {
	p := h.page(r, "Patients")
	p.Form, p.Fields = form, fields

	patients, err := h.backend.ListPatients(r.Context())
	if err != nil {
		h.logger.Warn("failed to load patients", zap.Error(err))
		errMsg = joinErrors(errMsg, "Error loading patients: "+api.ErrorMessage(err))
		if status == http.StatusOK {
			status = statusFor(err)
		}
	}
	p.Error = errMsg
	p.Data = patientsData{Patients: patients}
	h.view.Render(w, status, "patients", p)
}

func (h *Handler) Patient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	h.renderPatient(w, r, id, http.StatusOK, nil, nil, "")
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	if !h.parseForm(w, r) {
		return
	}
	form := patientFormFrom(r)
	if fields := h.validate(form); fields != nil {
		h.renderPatient(w, r, id, http.StatusUnprocessableEntity, &form, fields, invalidForm)
		return
	}
	if err := h.backend.UpdatePatient(r.Context(), id, form.input()); err != nil {
		h.logger.Warn("failed to update patient", zap.Int64("id", id), zap.Error(err))
		h.renderPatient(w, r, id, statusFor(err), &form, nil, "Error saving patient: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, "/patients/"+strconv.FormatInt(id, 10), "saved")
}

// renderPatient shows the patient with visit history. A nil form is filled
// from the stored record.
func (h *Handler) renderPatient(w http.ResponseWriter, r *http.Request, id int64, status int, form *patientForm, fields map[string]string, errMsg string) {
	details, err := h.backend.GetPatient(r.Context(), id)
	if err != nil {
		h.failed(w, r, "loading patient", err)
		return
	}
	if form == nil {
		f := patientFormOf(details.Patient)
		form = &f
	}
	p := h.page(r, details.Patient.FullName)
	p.Form, p.Fields, p.Error = *form, fields, errMsg
	p.Data = details
	h.view.Render(w, status, "patient", p)
}
