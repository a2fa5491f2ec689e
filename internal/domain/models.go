package domain

import "time"

// AppointmentType is the kind of visit a patient books
type AppointmentType string

const (
	AppointmentConsultation AppointmentType = "consultation"
	AppointmentFollowup     AppointmentType = "followup"
	AppointmentEmergency    AppointmentType = "emergency"
	AppointmentRoutine      AppointmentType = "routine"
)

// AppointmentTypes lists every accepted appointment type
var AppointmentTypes = []AppointmentType{
	AppointmentConsultation,
	AppointmentFollowup,
	AppointmentEmergency,
	AppointmentRoutine,
}

// Valid reports whether t is one of AppointmentTypes
func (t AppointmentType) Valid() bool {
	for _, known := range AppointmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AppointmentStatus is the lifecycle state of an appointment
type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Length limits applied to free-text webhook parameters
const (
	NameMinLength         = 2
	NameMaxLength         = 50
	PolicyNumberMinLength = 5
	PolicyNumberMaxLength = 50
)

// Patient is a person known to the booking assistant.
// Identity for find-or-create is (FirstName, LastName, BirthDate).
type Patient struct {
	PatientID    string    `json:"patientId" bson:"patientId"`
	FirstName    string    `json:"firstName" bson:"firstName"`
	LastName     string    `json:"lastName" bson:"lastName"`
	BirthDate    time.Time `json:"birthDate" bson:"birthDate"`
	PolicyNumber string    `json:"policyNumber,omitempty" bson:"policyNumber,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasPolicy reports whether an insurance policy number is on file
func (p *Patient) HasPolicy() bool {
	return p.PolicyNumber != ""
}

// Appointment is a booked visit
type Appointment struct {
	BookingID       string            `json:"bookingId" bson:"bookingId"`
	PatientID       string            `json:"patientId" bson:"patientId"`
	AppointmentType AppointmentType   `json:"appointmentType" bson:"appointmentType"`
	AppointmentTime time.Time         `json:"appointmentTime" bson:"appointmentTime"`
	AdditionalInfo  string            `json:"additionalInfo,omitempty" bson:"additionalInfo,omitempty"`
	Status          AppointmentStatus `json:"status" bson:"status"`
	CreatedAt       time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// AppointmentRequest carries the caller-supplied fields of a booking.
// BookingID and Status are accepted but never trusted.
type AppointmentRequest struct {
	BookingID       string
	PatientID       string
	AppointmentType AppointmentType
	AppointmentTime TimeParts
	AdditionalInfo  string
	Status          AppointmentStatus
}
