package serializer

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spf13/cast"
)

// Coercer converts a field value in both directions. Nil values never reach a coercer.
type Coercer interface {
	// Dump converts a stored value into its JSON representation.
	Dump(value any) (any, error)
	// Load converts a raw JSON value into the value assigned to the entity.
	Load(raw any) (any, error)
}

var errNotText = errors.New("expected a string")

// EnumCoercer restricts values to the declared members.
type EnumCoercer struct {
	Values []string
}

func (c EnumCoercer) Dump(value any) (any, error) {
	return fmt.Sprint(value), nil
}

func (c EnumCoercer) Load(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, errNotText
	}
	for _, v := range c.Values {
		if v == s {
			return s, nil
		}
	}
	return nil, fmt.Errorf("'%s' is not one of %v", s, c.Values)
}

// IntCoercer normalizes JSON numbers and numeric strings to int64.
type IntCoercer struct{}

func (IntCoercer) Dump(value any) (any, error) {
	return value, nil
}

func (IntCoercer) Load(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case bool:
		return nil, errors.New("expected a number")
	}
	return cast.ToInt64E(raw)
}

// FloatCoercer normalizes JSON numbers and numeric strings to float64.
type FloatCoercer struct{}

func (FloatCoercer) Dump(value any) (any, error) {
	if n, ok := value.(pgtype.Numeric); ok {
		f, err := n.Float64Value()
		if err != nil {
			return nil, err
		}
		if !f.Valid {
			return nil, nil
		}
		return f.Float64, nil
	}
	return value, nil
}

func (FloatCoercer) Load(raw any) (any, error) {
	if _, ok := raw.(bool); ok {
		return nil, errors.New("expected a number")
	}
	return cast.ToFloat64E(raw)
}

// BoolCoercer accepts JSON booleans and their common text forms.
type BoolCoercer struct{}

func (BoolCoercer) Dump(value any) (any, error) {
	return value, nil
}

func (BoolCoercer) Load(raw any) (any, error) {
	return cast.ToBoolE(raw)
}

// UUIDCoercer renders UUIDs in canonical text form.
type UUIDCoercer struct{}

func (UUIDCoercer) Dump(value any) (any, error) {
	switch v := value.(type) {
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case uuid.UUID:
		return v.String(), nil
	}
	return value, nil
}

func (UUIDCoercer) Load(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, errNotText
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return u.String(), nil
}

var timeOfDayRe = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2}(\.\d{1,6})?)?$`)

// TimeOfDayCoercer handles "time" columns as HH:MM[:SS[.ffffff]] text.
type TimeOfDayCoercer struct{}

func (TimeOfDayCoercer) Dump(value any) (any, error) {
	t, ok := value.(pgtype.Time)
	if !ok {
		return value, nil
	}
	if !t.Valid {
		return nil, nil
	}
	us := t.Microseconds
	h, us := us/3_600_000_000, us%3_600_000_000
	m, us := us/60_000_000, us%60_000_000
	s, us := us/1_000_000, us%1_000_000
	if us != 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, us), nil
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
}

func (TimeOfDayCoercer) Load(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, errNotText
	}
	if !timeOfDayRe.MatchString(s) {
		return nil, fmt.Errorf("'%s' is not a time of day", s)
	}
	return s, nil
}
