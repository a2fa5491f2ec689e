package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/format"
)

// Rule checks one aspect of a decoded body and returns the messages of every
// check that failed
type Rule func(body map[string]interface{}, now time.Time) []string

// RuleSet is the ordered list of rules for one endpoint
type RuleSet []Rule

var (
	sessionRules = RuleSet{
		required([]string{"sessionInfo"}, "Session info is required", "Session info cannot be empty"),
		required([]string{"sessionInfo", "parameters"}, "Parameters are required", "Parameters cannot be empty"),
	}

	// UserCreationRules guard POST /api/users
	UserCreationRules = append(append(RuleSet{}, sessionRules...),
		trimmedLength(paramPath("firstName"), domain.NameMinLength, domain.NameMaxLength,
			"First name is required", "First name must be between 2 and 50 characters"),
		trimmedLength(paramPath("lastName"), domain.NameMinLength, domain.NameMaxLength,
			"Last name is required", "Last name must be between 2 and 50 characters"),
		birthDateRule,
	)

	// InsuranceUpdateRules guard POST /api/users/update
	InsuranceUpdateRules = append(append(RuleSet{}, sessionRules...),
		notEmpty(paramPath("patientId"), "Patient ID is required"),
		trimmedLength(paramPath("insuranceNumber"), domain.PolicyNumberMinLength, domain.PolicyNumberMaxLength,
			"Insurance number is required", "Insurance number must be between 5 and 50 characters"),
	)

	// AppointmentCreationRules guard POST /api/appointments
	AppointmentCreationRules = append(append(RuleSet{}, sessionRules...),
		notEmpty(paramPath("patientId"), "Patient ID is required"),
		appointmentTypeRule,
		appointmentTimeRule,
	)
)

// Check runs every rule and collects all failure messages
func (rs RuleSet) Check(body map[string]interface{}, now time.Time) []string {
	var failures []string
	for _, rule := range rs {
		failures = append(failures, rule(body, now)...)
	}
	return failures
}

// Validate rejects requests that fail rules with a 400 failure envelope
// listing every failed rule. The body is left readable for the handler.
func Validate(rules RuleSet, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := readBody(r)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to read request body")
			}

			failures := rules.Check(decodeBody(raw), now())
			if len(failures) > 0 {
				log.Warn().
					Str("path", r.URL.Path).
					Strs("failures", failures).
					Msg("Validation errors")
				Failure(w, r, domain.MsgValidationFailed, http.StatusBadRequest, Messages(failures...), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// decodeBody decodes a JSON object keeping numbers as json.Number. Anything
// else decodes to an empty body so the presence rules report it.
func decodeBody(raw []byte) map[string]interface{} {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil || body == nil {
		return map[string]interface{}{}
	}
	return body
}

func paramPath(field string) []string {
	return []string{"sessionInfo", "parameters", field}
}

func lookup(body map[string]interface{}, path []string) (interface{}, bool) {
	var cur interface{} = body
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// isEmpty treats absent, null, blank strings and empty containers as empty
func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]interface{}:
		return len(val) == 0
	case []interface{}:
		return len(val) == 0
	default:
		return false
	}
}

// stringValue renders scalars the way they arrive in text form
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return "[object]"
	}
}

func required(path []string, missingMsg, emptyMsg string) Rule {
	return func(body map[string]interface{}, _ time.Time) []string {
		v, ok := lookup(body, path)
		if !ok {
			return []string{missingMsg, emptyMsg}
		}
		if isEmpty(v) {
			return []string{emptyMsg}
		}
		return nil
	}
}

func notEmpty(path []string, msg string) Rule {
	return func(body map[string]interface{}, _ time.Time) []string {
		v, _ := lookup(body, path)
		if isEmpty(v) {
			return []string{msg}
		}
		return nil
	}
}

func trimmedLength(path []string, min, max int, emptyMsg, lengthMsg string) Rule {
	return func(body map[string]interface{}, _ time.Time) []string {
		v, _ := lookup(body, path)
		s := strings.TrimSpace(stringValue(v))

		var failures []string
		if s == "" {
			failures = append(failures, emptyMsg)
		}
		if n := utf8.RuneCountInString(s); n < min || n > max {
			failures = append(failures, lengthMsg)
		}
		return failures
	}
}

func appointmentTypeRule(body map[string]interface{}, _ time.Time) []string {
	v, _ := lookup(body, paramPath("appointmentType"))
	s := strings.TrimSpace(stringValue(v))

	var failures []string
	if s == "" {
		failures = append(failures, "Booking type is required")
	}
	if !domain.AppointmentType(s).Valid() {
		failures = append(failures, "Invalid booking type")
	}
	return failures
}

func birthDateRule(body map[string]interface{}, now time.Time) []string {
	v, _ := lookup(body, paramPath("birthDate"))

	var failures []string
	if isEmpty(v) {
		failures = append(failures, "Birth date is required here")
	}

	obj, _ := v.(map[string]interface{})
	day, _ := integer(obj["day"])
	month, _ := integer(obj["month"])
	year, _ := integer(obj["year"])
	if day == 0 || month == 0 || year == 0 {
		return append(failures, domain.MsgBirthDateRequired)
	}

	birth := time.Date(year, time.Month(month), day, 0, 0, 0, 0, format.Location())
	if birth.After(now) {
		failures = append(failures, "Date of birth cannot be in the future")
	}
	return failures
}

func appointmentTimeRule(body map[string]interface{}, now time.Time) []string {
	v, _ := lookup(body, paramPath("appointmentTime"))
	obj, ok := v.(map[string]interface{})
	if !ok {
		return []string{"Appointment time must be a valid object"}
	}

	year, yearOK := integer(obj["year"])
	month, monthOK := integer(obj["month"])
	day, dayOK := integer(obj["day"])
	hours, hoursOK := integer(obj["hours"])
	minutes, minutesOK := integer(obj["minutes"])
	if !yearOK || !monthOK || !dayOK || !hoursOK || !minutesOK || year == 0 || month == 0 || day == 0 {
		return []string{"Invalid appointment time format"}
	}
	seconds, secondsOK := optionalInteger(obj["seconds"])
	nanos, nanosOK := optionalInteger(obj["nanos"])
	if !secondsOK || !nanosOK {
		return []string{"Invalid appointment time format"}
	}

	var failures []string
	at := time.Date(year, time.Month(month), day, hours, minutes, seconds, nanos, format.Location())
	if !at.After(now) {
		failures = append(failures, "Appointment time must be in the future")
	}

	if month < 1 || month > 12 {
		failures = append(failures, "Invalid month")
	}
	if day < 1 || day > 31 {
		failures = append(failures, "Invalid day")
	}
	if hours < 0 || hours > 23 {
		failures = append(failures, "Invalid hours")
	}
	if minutes < 0 || minutes > 59 {
		failures = append(failures, "Invalid minutes")
	}
	return failures
}

// integer reports whether v is a whole JSON number the parameter decoders
// accept
func integer(v interface{}) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := domain.WholeNumber(n)
	if err != nil {
		return 0, false
	}
	return i, true
}

// optionalInteger is integer for parts that may be absent or null
func optionalInteger(v interface{}) (int, bool) {
	if v == nil {
		return 0, true
	}
	return integer(v)
}
