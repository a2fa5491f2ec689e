package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/service"
)

const msgUserFailed = "User retrieval/creation failed due to some error"

// FindOrCreateUser handles POST /api/users
func (h *Handlers) FindOrCreateUser(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		log.Error().Err(err).Msg("Find or create user failed")
		Failure(w, r, err.Error(), http.StatusInternalServerError, Messages(msgUserFailed), nil)
	}

	stores, err := h.stores.Stores(r.Context())
	if err != nil {
		fail(err)
		return
	}

	var params UserParameters
	if err := decodeParameters(r, &params); err != nil {
		fail(err)
		return
	}

	patient, err := service.NewPatientService(stores.Patients).
		FindOrCreate(r.Context(), params.FirstName.String(), params.LastName.String(), params.BirthDate)
	if err != nil {
		fail(err)
		return
	}

	Success(w, r, map[string]interface{}{
		"patientId":     patient.PatientID,
		"patientExists": patient.HasPolicy(),
	}, "User retrieved/created successfully", http.StatusOK, nil)
}

// UpdateInsurance handles POST /api/users/update
func (h *Handlers) UpdateInsurance(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		log.Error().Err(err).Msg("Insurance update failed")
		Failure(w, r, err.Error(), insuranceStatus(err), Messages(err.Error()), nil)
	}

	stores, err := h.stores.Stores(r.Context())
	if err != nil {
		fail(err)
		return
	}

	var params InsuranceParameters
	if err := decodeParameters(r, &params); err != nil {
		fail(err)
		return
	}

	patient, err := service.NewPatientService(stores.Patients).
		UpdateInsurance(r.Context(), params.PatientID.String(), strings.TrimSpace(params.InsuranceNumber.String()))
	if err != nil {
		fail(err)
		return
	}

	Success(w, r, map[string]interface{}{
		"patientId":       patient.PatientID,
		"insuranceNumber": patient.PolicyNumber,
	}, "Insurance updated successfully", http.StatusOK, nil)
}

func insuranceStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindPatientNotFound:
		return http.StatusNotFound
	case domain.KindDuplicatePolicy:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
