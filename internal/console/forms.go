package console

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mehmetcc/polyconsole/internal/api"
)

// newValidator reports fields under their form names so messages line up
// with the inputs that produced them.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("recordid", func(fl validator.FieldLevel) bool {
		n, err := strconv.ParseInt(fl.Field().String(), 10, 64)
		return err == nil && n > 0
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func field(r *http.Request, name string) string {
	return strings.TrimSpace(r.PostFormValue(name))
}

// atoi64 is only called on values that passed the recordid or number rules.
func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

type patientForm struct {
	FullName        string `form:"full_name"        validate:"required,max=200"`
	Address         string `form:"address"          validate:"required,max=300"`
	Gender          string `form:"gender"           validate:"required,max=32"`
	Age             string `form:"age"              validate:"required,number,max=3"`
	InsuranceNumber string `form:"insurance_number" validate:"required,max=64"`
}

func patientFormFrom(r *http.Request) patientForm {
	return patientForm{
		FullName:        field(r, "full_name"),
		Address:         field(r, "address"),
		Gender:          field(r, "gender"),
		Age:             field(r, "age"),
		InsuranceNumber: field(r, "insurance_number"),
	}
}

func patientFormOf(p api.Patient) patientForm {
	return patientForm{
		FullName:        p.FullName,
		Address:         p.Address,
		Gender:          p.Gender,
		Age:             strconv.Itoa(p.Age),
		InsuranceNumber: p.InsuranceNumber,
	}
}

func (f patientForm) input() api.PatientInput {
	return api.PatientInput{
		FullName:        f.FullName,
		Address:         f.Address,
		Gender:          f.Gender,
		Age:             int(atoi64(f.Age)),
		InsuranceNumber: f.InsuranceNumber,
	}
}

type doctorForm struct {
	FullName       string `form:"full_name"      validate:"required,max=200"`
	Category       string `form:"category"       validate:"required,max=64"`
	BirthDate      string `form:"birth_date"     validate:"required,datetime=2006-01-02"`
	Specialization string `form:"specialization" validate:"required,max=100"`
	Experience     string `form:"experience"     validate:"required,number,max=2"`
	SectionID      string `form:"section_id"     validate:"required,recordid"`
}

func doctorFormFrom(r *http.Request) doctorForm {
	return doctorForm{
		FullName:       field(r, "full_name"),
		Category:       field(r, "category"),
		BirthDate:      field(r, "birth_date"),
		Specialization: field(r, "specialization"),
		Experience:     field(r, "experience"),
		SectionID:      field(r, "section_id"),
	}
}

func (f doctorForm) input() api.DoctorInput {
	return api.DoctorInput{
		FullName:       f.FullName,
		Category:       f.Category,
		BirthDate:      f.BirthDate,
		Specialization: f.Specialization,
		Experience:     int(atoi64(f.Experience)),
		SectionID:      atoi64(f.SectionID),
	}
}

type sectionForm struct {
	Name    string `form:"name"    validate:"required,max=100"`
	Address string `form:"address" validate:"max=300"`
}

func sectionFormFrom(r *http.Request) sectionForm {
	return sectionForm{Name: field(r, "name"), Address: field(r, "address")}
}

type nurseForm struct {
	LastName   string `form:"last_name"   validate:"required,max=100"`
	FirstName  string `form:"first_name"  validate:"required,max=100"`
	MiddleName string `form:"middle_name" validate:"max=100"`
}

func nurseFormFrom(r *http.Request) nurseForm {
	return nurseForm{
		LastName:   field(r, "last_name"),
		FirstName:  field(r, "first_name"),
		MiddleName: field(r, "middle_name"),
	}
}

func (f nurseForm) input(sectionID int64) api.NurseInput {
	return api.NurseInput{
		LastName:   f.LastName,
		FirstName:  f.FirstName,
		MiddleName: f.MiddleName,
		SectionID:  sectionID,
	}
}

// scheduleForm allows at most three distinct weekdays.
type scheduleForm struct {
	DoctorID  string   `form:"doctor_id"  validate:"required,recordid"`
	SectionID string   `form:"section_id" validate:"required,recordid"`
	Days      []string `form:"days"       validate:"required,min=1,max=3,unique,dive,oneof=Пн Вт Ср Чт Пт Сб Вс"`
	Time      string   `form:"time"       validate:"required,max=32"`
	Room      string   `form:"room"       validate:"required,max=32"`
}

func scheduleFormFrom(r *http.Request) scheduleForm {
	var days []string
	for _, d := range r.PostForm["days"] {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, d)
		}
	}
	return scheduleForm{
		DoctorID:  field(r, "doctor_id"),
		SectionID: field(r, "section_id"),
		Days:      days,
		Time:      field(r, "time"),
		Room:      field(r, "room"),
	}
}

func (f scheduleForm) input() api.ScheduleInput {
	return api.ScheduleInput{
		DoctorID:  atoi64(f.DoctorID),
		SectionID: atoi64(f.SectionID),
		Days:      api.JoinDays(f.Days),
		Time:      f.Time,
		Room:      f.Room,
	}
}

type visitForm struct {
	PatientID string `form:"patient_id" validate:"required,recordid"`
	DoctorID  string `form:"doctor_id"  validate:"required,recordid"`
	VisitDate string `form:"visit_date" validate:"required,datetime=2006-01-02"`
	Status    string `form:"status"     validate:"required,max=64"`
}

func visitFormFrom(r *http.Request) visitForm {
	return visitForm{
		PatientID: field(r, "patient_id"),
		DoctorID:  field(r, "doctor_id"),
		VisitDate: field(r, "visit_date"),
		Status:    field(r, "status"),
	}
}

func (f visitForm) input() api.VisitInput {
	return api.VisitInput{
		PatientID: atoi64(f.PatientID),
		DoctorID:  atoi64(f.DoctorID),
		VisitDate: f.VisitDate,
		Status:    f.Status,
	}
}
