package console

import (
	"net/http"
	"strconv"

	"github.com/mehmetcc/polyconsole/internal/api"
	"go.uber.org/zap"
)

type sectionsData struct {
	Sections []api.Section
}

func (h *Handler) Sections(w http.ResponseWriter, r *http.Request) {
	h.renderSections(w, r, http.StatusOK, sectionForm{}, nil, "")
}

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	form := sectionFormFrom(r)
	if fields := h.validate(form); fields != nil {
		h.renderSections(w, r, http.StatusUnprocessableEntity, form, fields, invalidForm)
		return
	}
	created, err := h.backend.CreateSection(r.Context(), api.SectionInput{Name: form.Name, Address: form.Address})
	if err != nil {
		h.logger.Warn("failed to save section", zap.Error(err))
		h.renderSections(w, r, statusFor(err), form, nil, "Error saving section: "+api.ErrorMessage(err))
		return
	}
	h.logger.Info("section created", zap.Int64("id", created.ID), zap.String("name", created.Name))
	seeOther(w, r, "/sections", "saved")
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := h.backend.DeleteSection(r.Context(), id); err != nil {
		h.logger.Warn("failed to delete section", zap.Int64("id", id), zap.Error(err))
		h.renderSections(w, r, statusFor(err), sectionForm{}, nil, "Error deleting section: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, "/sections", "deleted")
}

func (h *Handler) renderSections(w http.ResponseWriter, r *http.Request, status int, form sectionForm, fields map[string]string, errMsg string) {
	p := h.page(r, "Sections")
	p.Form, p.Fields = form, fields

	sections, err := h.backend.ListSections(r.Context())
	if err != nil {
		h.logger.Warn("failed to load sections", zap.Error(err))
		errMsg = joinErrors(errMsg, "Error loading sections: "+api.ErrorMessage(err))
		if status == http.StatusOK {
			status = statusFor(err)
		}
	}
	p.Error = errMsg
	p.Data = sectionsData{Sections: sections}
	h.view.Render(w, status, "sections", p)
}

func (h *Handler) Section(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	h.renderSection(w, r, id, http.StatusOK, nurseForm{}, nil, "")
}

func (h *Handler) renderSection(w http.ResponseWriter, r *http.Request, id int64, status int, form nurseForm, fields map[string]string, errMsg string) {
	details, err := h.backend.GetSection(r.Context(), id)
	if err != nil {
		h.failed(w, r, "loading section", err)
		return
	}
	p := h.page(r, details.Section.Name)
	p.Form, p.Fields, p.Error = form, fields, errMsg
	p.Data = details
	h.view.Render(w, status, "section", p)
}

func sectionPath(id int64) string { return "/sections/" + strconv.FormatInt(id, 10) }

func (h *Handler) CreateNurse(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	if !h.parseForm(w, r) {
		return
	}
	form := nurseFormFrom(r)
	if fields := h.validate(form); fields != nil {
		h.renderSection(w, r, sectionID, http.StatusUnprocessableEntity, form, fields, invalidForm)
		return
	}
	if err := h.backend.CreateNurse(r.Context(), form.input(sectionID)); err != nil {
		h.logger.Warn("failed to save nurse", zap.Int64("section_id", sectionID), zap.Error(err))
		h.renderSection(w, r, sectionID, statusFor(err), form, nil, "Error saving nurse: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, sectionPath(sectionID), "saved")
}

// UpdateNurse edits a nurse in place from the section page. The add form
// stays empty; problems are reported in the banner.
func (h *Handler) UpdateNurse(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := idParam(r, "id")
	nurseID, ok2 := idParam(r, "nurseID")
	if !ok || !ok2 {
		h.NotFound(w, r)
		return
	}
	if !h.parseForm(w, r) {
		return
	}
	form := nurseFormFrom(r)
	if fields := h.validate(form); fields != nil {
		msgs := make([]string, 0, len(fields)+1)
		msgs = append(msgs, "Error updating nurse:")
		for _, name := range []string{"last_name", "first_name", "middle_name"} {
			if m, ok := fields[name]; ok {
				msgs = append(msgs, m+".")
			}
		}
		h.renderSection(w, r, sectionID, http.StatusUnprocessableEntity, nurseForm{}, nil, joinErrors(msgs...))
		return
	}
	if err := h.backend.UpdateNurse(r.Context(), nurseID, form.input(sectionID)); err != nil {
		h.logger.Warn("failed to update nurse", zap.Int64("id", nurseID), zap.Error(err))
		h.renderSection(w, r, sectionID, statusFor(err), nurseForm{}, nil, "Error updating nurse: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, sectionPath(sectionID), "saved")
}

func (h *Handler) DeleteNurse(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := idParam(r, "id")
	nurseID, ok2 := idParam(r, "nurseID")
	if !ok || !ok2 {
		h.NotFound(w, r)
		return
	}
	if err := h.backend.DeleteNurse(r.Context(), nurseID); err != nil {
		h.logger.Warn("failed to delete nurse", zap.Int64("id", nurseID), zap.Error(err))
		h.renderSection(w, r, sectionID, statusFor(err), nurseForm{}, nil, "Error deleting nurse: "+api.ErrorMessage(err))
		return
	}
	seeOther(w, r, sectionPath(sectionID), "deleted")
}
