package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stealthcompany.com/appointmentbot/internal/domain"
)

// maxBodyBytes bounds webhook bodies read into memory
const maxBodyBytes = 1 << 20

// WebhookRequest is the envelope the dialog platform posts to every endpoint
type WebhookRequest struct {
	SessionInfo *SessionInfo `json:"sessionInfo"`
}

type SessionInfo struct {
	Parameters json.RawMessage `json:"parameters"`
}

// text is a parameter the dialog platform may send as a string, number or
// boolean. It decodes to the same text the validation rules inspect.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*t = text(stringValue(v))
	return nil
}

func (t text) String() string {
	return string(t)
}

// UserParameters are the parameters of POST /api/users
type UserParameters struct {
	FirstName text             `json:"firstName"`
	LastName  text             `json:"lastName"`
	BirthDate domain.DateParts `json:"birthDate"`
}

// InsuranceParameters are the parameters of POST /api/users/update
type InsuranceParameters struct {
	PatientID       text `json:"patientId"`
	InsuranceNumber text `json:"insuranceNumber"`
}

// AppointmentParameters are the parameters of POST /api/appointments
type AppointmentParameters struct {
	PatientID       text             `json:"patientId"`
	AppointmentType text             `json:"appointmentType"`
	AppointmentTime domain.TimeParts `json:"appointmentTime"`
	AdditionalInfo  text             `json:"additionalInfo"`
	BookingID       text             `json:"bookingId"`
	Status          text             `json:"status"`
}

func (p AppointmentParameters) request() domain.AppointmentRequest {
	return domain.AppointmentRequest{
		BookingID:       p.BookingID.String(),
		PatientID:       p.PatientID.String(),
		AppointmentType: domain.AppointmentType(strings.TrimSpace(p.AppointmentType.String())),
		AppointmentTime: p.AppointmentTime,
		AdditionalInfo:  p.AdditionalInfo.String(),
		Status:          domain.AppointmentStatus(p.Status.String()),
	}
}

// readBody drains the request body and puts an identical reader back so
// later handlers can decode it again
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// decodeParameters extracts sessionInfo.parameters into dst. A missing tree
// is a malformed payload.
func decodeParameters(r *http.Request, dst interface{}) error {
	body, err := readBody(r)
	if err != nil {
		return domain.Wrap(domain.KindMalformedPayload, fmt.Errorf("read body: %w", err))
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.Wrap(domain.KindMalformedPayload, fmt.Errorf("decode body: %w", err))
	}
	if req.SessionInfo == nil || isNull(req.SessionInfo.Parameters) {
		return domain.NewError(domain.KindMalformedPayload, domain.MsgMalformedPayload)
	}

	if err := json.Unmarshal(req.SessionInfo.Parameters, dst); err != nil {
		return domain.Wrap(domain.KindMalformedPayload, fmt.Errorf("decode parameters: %w", err))
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
