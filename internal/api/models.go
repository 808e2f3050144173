package api

import (
	"strings"
	"time"
)

// Wire types follow the backend's GORM conventions: "ID" and "CreatedAt"
// are capitalized, other fields are snake_case.

type Patient struct {
	ID              int64     `json:"ID"`
	FullName        string    `json:"full_name"`
	Address         string    `json:"address"`
	Gender          string    `json:"gender"`
	Age             int       `json:"age"`
	InsuranceNumber string    `json:"insurance_number"`
	CreatedAt       time.Time `json:"CreatedAt"`
	Doctor          *Doctor   `json:"Doctor,omitempty"`
}

type PatientInput struct {
	FullName        string `json:"full_name"`
	Address         string `json:"address"`
	Gender          string `json:"gender"`
	Age             int    `json:"age"`
	InsuranceNumber string `json:"insurance_number"`
}

type PatientDetails struct {
	Patient Patient `json:"patient"`
	Visits  []Visit `json:"visits"`
}

// LastVisit returns the visit with the latest date, or nil when there are none.
func (d *PatientDetails) LastVisit() *Visit {
	var last *Visit
	var lastAt time.Time
	for i := range d.Visits {
		at := d.Visits[i].Date()
		if last == nil || at.After(lastAt) {
			last, lastAt = &d.Visits[i], at
		}
	}
	return last
}

type Doctor struct {
	ID             int64    `json:"ID"`
	FullName       string   `json:"full_name"`
	Category       string   `json:"category"`
	BirthDate      string   `json:"birth_date"`
	Specialization string   `json:"specialization"`
	Experience     int      `json:"experience"`
	SectionID      int64    `json:"section_id"`
	Section        *Section `json:"Section,omitempty"`
}

type DoctorInput struct {
	FullName       string `json:"full_name"`
	Category       string `json:"category"`
	BirthDate      string `json:"birth_date"`
	Specialization string `json:"specialization"`
	Experience     int    `json:"experience"`
	SectionID      int64  `json:"section_id"`
}

type DoctorDetails struct {
	Doctor    Doctor     `json:"doctor"`
	Schedules []Schedule `json:"schedules"`
	Patients  []Patient  `json:"patients"`
}

type Section struct {
	ID      int64  `json:"ID"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type SectionInput struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type SectionDetails struct {
	Section Section  `json:"section"`
	Doctors []Doctor `json:"doctors"`
	Nurses  []Nurse  `json:"nurses"`
}

type Nurse struct {
	ID         int64  `json:"ID"`
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	SectionID  int64  `json:"section_id"`
}

func (n Nurse) FullName() string {
	return strings.TrimSpace(strings.Join([]string{n.LastName, n.FirstName, n.MiddleName}, " "))
}

type NurseInput struct {
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	SectionID  int64  `json:"section_id"`
}

type Schedule struct {
	ID        int64    `json:"ID"`
	DoctorID  int64    `json:"doctor_id"`
	SectionID int64    `json:"section_id"`
	Days      string   `json:"days"`
	Time      string   `json:"time"`
	Room      string   `json:"room"`
	Doctor    *Doctor  `json:"Doctor,omitempty"`
	Section   *Section `json:"Section,omitempty"`
}

type ScheduleInput struct {
	DoctorID  int64  `json:"doctor_id"`
	SectionID int64  `json:"section_id"`
	Days      string `json:"days"`
	Time      string `json:"time"`
	Room      string `json:"room"`
}

// JoinDays renders selected weekdays in the backend's "Пн, Ср" form.
func JoinDays(days []string) string { return strings.Join(days, ", ") }

type Visit struct {
	ID           int64   `json:"ID"`
	PatientID    int64   `json:"patient_id"`
	DoctorID     int64   `json:"doctor_id"`
	VisitDate    string  `json:"visit_date"`
	Status       string  `json:"status"`
	Complaints   string  `json:"complaints,omitempty"`
	Diagnosis    string  `json:"diagnosis,omitempty"`
	Prescription string  `json:"prescription,omitempty"`
	SickLeave    bool    `json:"sick_leave"`
	Doctor       *Doctor `json:"Doctor,omitempty"`
}

// Date parses VisitDate as a calendar date or an RFC 3339 timestamp; an
// unparsable date sorts first.
func (v Visit) Date() time.Time {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, v.VisitDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

type VisitInput struct {
	PatientID int64  `json:"patient_id"`
	DoctorID  int64  `json:"doctor_id"`
	VisitDate string `json:"visit_date"`
	Status    string `json:"status"`
}
