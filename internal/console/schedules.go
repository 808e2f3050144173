package console

import (
	"net/http"
	"strings"

	"github.com/mehmetcc/polyconsole/internal/api"
	"github.com/mehmetcc/polyconsole/internal/view"
	"go.uber.org/zap"
)

type schedulesData struct {
	Schedules      []api.Schedule
	Doctors        []api.Doctor
	Sections       []api.Section
	Weekdays       []string
	Specialization string
}

// Schedules lists every schedule, or only those of doctors with the
// requested specialization.
func (h *Handler) Schedules(w http.ResponseWriter, r *http.Request) {
	h.renderSchedules(w, r, http.StatusOK, scheduleForm{}, nil, "")
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	form := scheduleFormFrom(r)
	if fields := h.validate(form); fields != nil {
		h.renderSchedules(w, r, http.StatusUnprocessableEntity, form, fields, invalidForm)
		return
	}
	if err := h.backend.CreateSchedule(r.Context(), form.input()); err != nil {
		h.logger.Warn("failed to save schedule", zap.Error(err))
		h.renderSchedules(w, r, statusFor(err), form, nil, "Error saving schedule: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, "/schedules", "saved")
}

func (h *Handler) renderSchedules(w http.ResponseWriter, r *http.Request, status int, form scheduleForm, fields map[string]string, errMsg string) {
	ctx := r.Context()
	p := h.page(r, "Schedules")
	p.Form, p.Fields = form, fields
	data := schedulesData{
		Weekdays:       view.Weekdays,
		Specialization: strings.TrimSpace(r.URL.Query().Get("specialization")),
	}

	var err error
	if data.Specialization != "" {
		data.Schedules, err = h.backend.SchedulesBySpecialization(ctx, data.Specialization)
	} else {
		data.Schedules, err = h.backend.ListSchedules(ctx)
	}
	if err != nil {
		h.logger.Warn("failed to load schedules", zap.String("specialization", data.Specialization), zap.Error(err))
		errMsg = joinErrors(errMsg, "Error loading schedules: "+api.ErrorMessage(err))
		if status == http.StatusOK {
			status = statusFor(err)
		}
	}

	if data.Doctors, err = h.backend.ListDoctors(ctx); err != nil {
		h.logger.Warn("failed to load doctors", zap.Error(err))
		errMsg = joinErrors(errMsg, "Error loading doctors: "+api.ErrorMessage(err))
	}
	if data.Sections, err = h.backend.ListSections(ctx); err != nil {
		h.logger.Warn("failed to load sections", zap.Error(err))
		errMsg = joinErrors(errMsg, "Error loading sections: "+api.ErrorMessage(err))
	}

	p.Error = errMsg
	p.Data = data
	h.view.Render(w, status, "schedules", p)
}
