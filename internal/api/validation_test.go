package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func params(fields string) map[string]interface{} {
	return decodeBody([]byte(`{"sessionInfo":{"parameters":{` + fields + `}}}`))
}

func TestUserCreationRules(t *testing.T) {
	tests := []struct {
		name   string
		fields string
		want   []string
	}{
		{
			name:   "valid",
			fields: `"firstName":"John","lastName":"Doe","birthDate":{"day":1,"month":1,"year":1990}`,
		},
		{
			name:   "short trimmed name",
			fields: `"firstName":" J ","lastName":"Doe","birthDate":{"day":1,"month":1,"year":1990}`,
			want:   []string{"First name must be between 2 and 50 characters"},
		},
		{
			name:   "numeric name is text",
			fields: `"firstName":42,"lastName":"Doe","birthDate":{"day":1,"month":1,"year":1990}`,
		},
		{
			name:   "birth date in the future",
			fields: `"firstName":"John","lastName":"Doe","birthDate":{"day":1,"month":1,"year":2030}`,
			want:   []string{"Date of birth cannot be in the future"},
		},
		{
			name:   "huge birth year",
			fields: `"firstName":"John","lastName":"Doe","birthDate":{"day":1,"month":1,"year":18446744073709551616}`,
			want:   []string{"Day, month and year are required for birth date"},
		},
		{
			name:   "zero day",
			fields: `"firstName":"John","lastName":"Doe","birthDate":{"day":0,"month":1,"year":1990}`,
			want:   []string{"Day, month and year are required for birth date"},
		},
		{
			name:   "empty birth date object",
			fields: `"firstName":"John","lastName":"Doe","birthDate":{}`,
			want:   []string{"Birth date is required here", "Day, month and year are required for birth date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserCreationRules.Check(params(tt.fields), fixedNow))
		})
	}
}

func TestAppointmentCreationRules(t *testing.T) {
	const future = `"appointmentTime":{"year":2099,"month":1,"day":1,"hours":9,"minutes":0}`

	tests := []struct {
		name   string
		fields string
		want   []string
	}{
		{
			name:   "valid",
			fields: `"patientId":"P1","appointmentType":" followup ",` + future,
		},
		{
			name:   "midnight is a valid hour",
			fields: `"patientId":"P1","appointmentType":"consultation","appointmentTime":{"year":2099,"month":1,"day":1,"hours":0,"minutes":0}`,
		},
		{
			name:   "integral floats are accepted",
			fields: `"patientId":"P1","appointmentType":"consultation","appointmentTime":{"year":2099.0,"month":1.0,"day":1,"hours":9,"minutes":0,"seconds":30,"nanos":0}`,
		},
		{
			name:   "unknown type",
			fields: `"patientId":"P1","appointmentType":"follow-up",` + future,
			want:   []string{"Invalid booking type"},
		},
		{
			name:   "missing patient and type",
			fields: future,
			want:   []string{"Patient ID is required", "Booking type is required", "Invalid booking type"},
		},
		{
			name:   "fractional minutes",
			fields: `"patientId":"P1","appointmentType":"routine","appointmentTime":{"year":2099,"month":1,"day":1,"hours":9,"minutes":0.5}`,
			want:   []string{"Invalid appointment time format"},
		},
		{
			name:   "fractional nanos",
			fields: `"patientId":"P1","appointmentType":"routine","appointmentTime":{"year":2099,"month":1,"day":1,"hours":9,"minutes":0,"nanos":500000000.5}`,
			want:   []string{"Invalid appointment time format"},
		},
		{
			name:   "null seconds",
			fields: `"patientId":"P1","appointmentType":"routine","appointmentTime":{"year":2099,"month":1,"day":1,"hours":9,"minutes":0,"seconds":null}`,
		},
		{
			name:   "year beyond 32 bits",
			fields: `"patientId":"P1","appointmentType":"routine","appointmentTime":{"year":1e19,"month":1,"day":1,"hours":9,"minutes":0}`,
			want:   []string{"Invalid appointment time format"},
		},
		{
			name:   "day and hour out of range",
			fields: `"patientId":"P1","appointmentType":"routine","appointmentTime":{"year":2099,"month":1,"day":32,"hours":24,"minutes":0}`,
			want:   []string{"Invalid day", "Invalid hours"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AppointmentCreationRules.Check(params(tt.fields), fixedNow))
		})
	}
}

func TestSessionRules(t *testing.T) {
	body := decodeBody([]byte(`{"sessionInfo":{"parameters":{}}}`))

	failures := InsuranceUpdateRules.Check(body, fixedNow)

	assert.Equal(t, []string{
		"Parameters cannot be empty",
		"Patient ID is required",
		"Insurance number is required",
		"Insurance number must be between 5 and 50 characters",
	}, failures)
}

func TestDecodeBodyToleratesGarbage(t *testing.T) {
	assert.Empty(t, decodeBody([]byte("not json")))
	assert.Empty(t, decodeBody([]byte(`[1,2]`)))
	assert.Empty(t, decodeBody(nil))
}
