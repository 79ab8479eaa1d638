package customer

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// Operator-facing violation messages. These are part of the job report
// contract and must stay stable.
const (
	MsgFullNameRequired = "Full name is required"
	MsgEmailInvalid     = "Valid email format is required"
	MsgDOBInvalid       = "Date of birth must be a valid date"
	MsgDOBInFuture      = "Date of birth must be in the past"
	MsgTimezoneInvalid  = "Invalid IANA timezone identifier"
	MsgAtLeastOneField  = "At least one field is required"
)

// dateLayout is the accepted ISO calendar date format.
const dateLayout = "2006-01-02"

// fieldNames is the known field set in declaration order. Violations are
// collected in this order so a record's messages are deterministic.
var fieldNames = []string{"full_name", "email", "date_of_birth", "timezone"}

// fieldRule validates one raw field value. It returns the normalized value
// to set on the record, or a violation message.
type fieldRule func(value string, rec *Record) (violation string)

var fieldRules = map[string]fieldRule{
	"full_name": func(v string, rec *Record) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return MsgFullNameRequired
		}
		rec.FullName = v
		return ""
	},
	"email": func(v string, rec *Record) string {
		v = strings.ToLower(strings.TrimSpace(v))
		addr, err := mail.ParseAddress(v)
		// Reject the "Name <addr>" form; only a bare address is a valid
		// customer email.
		if err != nil || addr.Address != v {
			return MsgEmailInvalid
		}
		rec.Email = v
		return ""
	},
	"date_of_birth": func(v string, rec *Record) string {
		d, err := time.Parse(dateLayout, strings.TrimSpace(v))
		if err != nil {
			return MsgDOBInvalid
		}
		if d.After(time.Now()) {
			return MsgDOBInFuture
		}
		rec.DateOfBirth = d
		return ""
	},
	"timezone": func(v string, rec *Record) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return MsgTimezoneInvalid
		}
		// Validity is defined by the system tzdata database.
		if _, err := time.LoadLocation(v); err != nil {
			return MsgTimezoneInvalid
		}
		rec.Timezone = v
		return ""
	},
}

// Validate checks a raw field map in full mode: every known field is
// required. All violations across all fields are collected in one pass, in
// field declaration order, so a single record can report multiple
// independent problems. Fields outside the known set are ignored (the CSV
// decoder may surface extra columns).
//
// On success it returns the normalized record and a nil violation list.
func Validate(fields map[string]string) (Record, []string) {
	var rec Record
	var violations []string

	for _, name := range fieldNames {
		if msg := fieldRules[name](fields[name], &rec); msg != "" {
			violations = append(violations, msg)
		}
	}

	return rec, violations
}

// ValidatePartial checks a raw field map in partial mode: every field is
// optional, but at least one known field must be present, and fields
// outside the known set are violations rather than silently dropped.
// Present fields are held to the same rules as full mode.
func ValidatePartial(fields map[string]string) (Patch, []string) {
	var patch Patch
	var violations []string

	var unknown []string
	for name := range fields {
		if _, ok := fieldRules[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		violations = append(violations, fmt.Sprintf("Unknown field %q", name))
	}

	present := 0
	var rec Record
	for _, name := range fieldNames {
		v, ok := fields[name]
		if !ok {
			continue
		}
		present++
		if msg := fieldRules[name](v, &rec); msg != "" {
			violations = append(violations, msg)
		}
	}

	if present == 0 {
		violations = append(violations, MsgAtLeastOneField)
		return Patch{}, violations
	}

	if _, ok := fields["full_name"]; ok {
		patch.FullName = &rec.FullName
	}
	if _, ok := fields["email"]; ok {
		patch.Email = &rec.Email
	}
	if _, ok := fields["date_of_birth"]; ok {
		patch.DateOfBirth = &rec.DateOfBirth
	}
	if _, ok := fields["timezone"]; ok {
		patch.Timezone = &rec.Timezone
	}

	return patch, violations
}
