package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/service"
)

const (
	msgAppointmentCreated = "Your appointment has been created successfully"
	msgAppointmentFailed  = "Appointment creation failed due to some error"
	msgAlreadyConfirmed   = "You already have a confirmed appointment"
)

// appointmentTimeLayout renders instants with millisecond precision in UTC
const appointmentTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// RequestAppointment handles POST /api/appointments
func (h *Handlers) RequestAppointment(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		log.Error().Err(err).Msg("Appointment creation failed")
		Failure(w, r, err.Error(), appointmentStatus(err), Messages(msgAppointmentFailed), nil)
	}

	stores, err := h.stores.Stores(r.Context())
	if err != nil {
		fail(err)
		return
	}

	var params AppointmentParameters
	if err := decodeParameters(r, &params); err != nil {
		fail(err)
		return
	}

	appointments := service.NewAppointmentService(stores.Appointments, stores.Patients)

	bookingID, found, err := appointments.FindConfirmedBooking(r.Context(), params.PatientID.String())
	if err != nil {
		fail(err)
		return
	}
	if found {
		alreadyBooked(w, r, bookingID)
		return
	}

	appointment, err := appointments.Create(r.Context(), params.request())
	if err != nil {
		if winner, ok := domain.ConflictingBooking(err); ok {
			alreadyBooked(w, r, winner)
			return
		}
		fail(err)
		return
	}

	Success(w, r, map[string]interface{}{
		"bookingId":       appointment.BookingID,
		"appointmenttime": formatAppointmentTime(appointment.AppointmentTime),
	}, "Appointment created successfully", http.StatusCreated, Messages(msgAppointmentCreated))
}

func alreadyBooked(w http.ResponseWriter, r *http.Request, bookingID string) {
	Failure(w, r, domain.MsgAppointmentExists, http.StatusConflict, Messages(msgAlreadyConfirmed),
		map[string]interface{}{"bookingId": bookingID})
}

func appointmentStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindPatientNotFound:
		return http.StatusNotFound
	case domain.KindBookingConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func formatAppointmentTime(t time.Time) string {
	return t.UTC().Format(appointmentTimeLayout)
}
