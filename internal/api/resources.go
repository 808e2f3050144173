package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func idPath(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}

// Patients

func (c *Client) ListPatients(ctx context.Context) ([]Patient, error) {
	return fetch[[]Patient](ctx, c, http.MethodGet, "/api/patients", nil)
}

func (c *Client) GetPatient(ctx context.Context, id int64) (*PatientDetails, error) {
	out, err := fetch[PatientDetails](ctx, c, http.MethodGet, idPath("/api/patients", id), nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePatient(ctx context.Context, in PatientInput) error {
	return c.do(ctx, http.MethodPost, "/api/patients", in, nil)
}

func (c *Client) UpdatePatient(ctx context.Context, id int64, in PatientInput) error {
	return c.do(ctx, http.MethodPut, idPath("/api/patients", id), in, nil)
}

// Doctors

func (c *Client) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return fetch[[]Doctor](ctx, c, http.MethodGet, "/api/doctors", nil)
}

func (c *Client) GetDoctor(ctx context.Context, id int64) (*DoctorDetails, error) {
	out, err := fetch[DoctorDetails](ctx, c, http.MethodGet, idPath("/api/doctors", id), nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDoctor(ctx context.Context, in DoctorInput) error {
	return c.do(ctx, http.MethodPost, "/api/doctors", in, nil)
}

// Sections

func (c *Client) ListSections(ctx context.Context) ([]Section, error) {
	return fetch[[]Section](ctx, c, http.MethodGet, "/api/sections", nil)
}

func (c *Client) GetSection(ctx context.Context, id int64) (*SectionDetails, error) {
	out, err := fetch[SectionDetails](ctx, c, http.MethodGet, idPath("/api/sections", id), nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSection(ctx context.Context, in SectionInput) (*Section, error) {
	out, err := fetch[Section](ctx, c, http.MethodPost, "/api/sections", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSection(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/sections", id), nil, nil)
}

// Nurses

func (c *Client) CreateNurse(ctx context.Context, in NurseInput) error {
	return c.do(ctx, http.MethodPost, "/api/nurses", in, nil)
}

func (c *Client) UpdateNurse(ctx context.Context, id int64, in NurseInput) error {
	return c.do(ctx, http.MethodPut, idPath("/api/nurses", id), in, nil)
}

func (c *Client) DeleteNurse(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/nurses", id), nil, nil)
}

// Schedules

func (c *Client) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return fetch[[]Schedule](ctx, c, http.MethodGet, "/api/schedules", nil)
}

func (c *Client) CreateSchedule(ctx context.Context, in ScheduleInput) error {
	return c.do(ctx, http.MethodPost, "/api/schedules", in, nil)
}

func (c *Client) SchedulesBySpecialization(ctx context.Context, specialization string) ([]Schedule, error) {
	return fetch[[]Schedule](ctx, c, http.MethodGet,
		"/api/schedules/specialization/"+url.PathEscape(specialization), nil)
}

// Visits

func (c *Client) ListVisits(ctx context.Context) ([]Visit, error) {
	return fetch[[]Visit](ctx, c, http.MethodGet, "/api/visits", nil)
}

func (c *Client) CreateVisit(ctx context.Context, in VisitInput) error {
	return c.do(ctx, http.MethodPost, "/api/visits", in, nil)
}
