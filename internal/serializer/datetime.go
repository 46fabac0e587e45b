package serializer

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// date, optional T or space, time with optional seconds and fraction, optional zone
var dateTimeRe = regexp.MustCompile(
	`^(\d{4})-(\d{2})-(\d{2})[T ]?(\d{2}):(\d{2})(?::(\d{2})(?:\.(\d{1,9}))?)?(Z|[+-]\d{2}(?::?\d{2})?)?$`,
)

const dateLayout = "2006-01-02"

// DateTimeCoercer handles timestamp columns. Values without a zone are treated as
// naive and kept in UTC; they dump without an offset.
type DateTimeCoercer struct{}

func (DateTimeCoercer) Dump(value any) (any, error) {
	t, ok := value.(time.Time)
	if !ok {
		return value, nil
	}
	return FormatDateTime(t), nil
}

func (DateTimeCoercer) Load(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return ParseDateTime(v)
	}
	return nil, errNotText
}

// FormatDateTime renders t as 2006-01-02T15:04:05[.ffffff][±HH:MM].
func FormatDateTime(t time.Time) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()%int(time.Microsecond) != 0 {
		layout += ".000000000"
	} else if t.Nanosecond() != 0 {
		layout += ".000000"
	}
	if t.Location() != time.UTC {
		layout += "-07:00"
	}
	return t.Format(layout)
}

// ParseDateTime accepts the forms FormatDateTime produces plus a space separator,
// a missing separator, "Z" and ±HHMM / ±HH offsets.
func ParseDateTime(s string) (time.Time, error) {
	m := dateTimeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("'%s' is not a datetime", s)
	}
	num := func(i int) int {
		if m[i] == "" {
			return 0
		}
		n, _ := strconv.Atoi(m[i])
		return n
	}
	nsec := 0
	if frac := m[7]; frac != "" {
		for len(frac) < 9 {
			frac += "0"
		}
		nsec, _ = strconv.Atoi(frac)
	}

	loc := time.UTC
	if zone := m[8]; zone != "" && zone != "Z" {
		sign := 1
		if zone[0] == '-' {
			sign = -1
		}
		digits := zone[1:]
		if len(digits) > 2 && digits[2] == ':' {
			digits = digits[:2] + digits[3:]
		}
		h, _ := strconv.Atoi(digits[:2])
		mins := 0
		if len(digits) == 4 {
			mins, _ = strconv.Atoi(digits[2:])
		}
		loc = time.FixedZone("", sign*(h*3600+mins*60))
	}

	t := time.Date(num(1), time.Month(num(2)), num(3), num(4), num(5), num(6), nsec, loc)
	// time.Date normalizes overflow; reject it instead
	if t.Year() != num(1) || int(t.Month()) != num(2) || t.Day() != num(3) ||
		num(4) > 23 || num(5) > 59 || num(6) > 59 {
		return time.Time{}, fmt.Errorf("'%s' is out of range", s)
	}
	return t, nil
}

// DateCoercer handles date columns as YYYY-MM-DD.
type DateCoercer struct{}

func (DateCoercer) Dump(value any) (any, error) {
	t, ok := value.(time.Time)
	if !ok {
		return value, nil
	}
	return t.Format(dateLayout), nil
}

func (DateCoercer) Load(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a date", v)
		}
		return t, nil
	}
	return nil, errNotText
}
