package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/format"
)

// AppointmentService implements booking
type AppointmentService struct {
	appointments AppointmentStore
	patients     PatientStore
	newID        func() string
}

// NewAppointmentService creates an appointment service over the given stores
func NewAppointmentService(appointments AppointmentStore, patients PatientStore) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		patients:     patients,
		newID:        uuid.NewString,
	}
}

// Create books a confirmed appointment for an existing patient. Any
// caller-supplied booking id or status is discarded.
func (s *AppointmentService) Create(ctx context.Context, req domain.AppointmentRequest) (*domain.Appointment, error) {
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindPatientNotFound, domain.MsgPatientNotFound)
		}
		return nil, domain.StoreError("find patient", err)
	}

	appointment := &domain.Appointment{
		BookingID:       s.newID(),
		PatientID:       req.PatientID,
		AppointmentType: domain.AppointmentType(strings.TrimSpace(string(req.AppointmentType))),
		AppointmentTime: format.ToAppointmentTimestamp(req.AppointmentTime).UTC(),
		AdditionalInfo:  req.AdditionalInfo,
		Status:          domain.StatusConfirmed,
	}

	if err := s.appointments.InsertConfirmed(ctx, appointment); err != nil {
		if bookingID, ok := domain.ConflictingBooking(err); ok {
			log.Warn().
				Str("patientId", req.PatientID).
				Str("bookingId", bookingID).
				Msg("Concurrent booking lost the confirmed slot")
			return nil, err
		}
		return nil, domain.StoreError("create appointment", err)
	}

	log.Info().
		Str("patientId", appointment.PatientID).
		Str("bookingId", appointment.BookingID).
		Str("appointmentType", string(appointment.AppointmentType)).
		Msg("Created appointment")
	return appointment, nil
}

// FindConfirmedBooking returns the booking id of the patient's confirmed
// appointment. found is false when there is none.
func (s *AppointmentService) FindConfirmedBooking(ctx context.Context, patientID string) (bookingID string, found bool, err error) {
	appointment, err := s.appointments.FindConfirmed(ctx, patientID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.StoreError("find confirmed appointment", err)
	}
	return appointment.BookingID, true, nil
}
