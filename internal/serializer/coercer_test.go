package serializer

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrudAPI/internal/model"
)

func TestParseDateTime(t *testing.T) {
	plus530 := time.FixedZone("", 5*3600+30*60)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2000-01-02T03:04:05", time.Date(2000, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2000-01-02 03:04", time.Date(2000, 1, 2, 3, 4, 0, 0, time.UTC)},
		{"2000-01-0203:04:05", time.Date(2000, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2000-01-02T03:04:05.25", time.Date(2000, 1, 2, 3, 4, 5, 250_000_000, time.UTC)},
		{"2000-01-02T03:04:05Z", time.Date(2000, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2000-01-02T03:04:05+05:30", time.Date(2000, 1, 2, 3, 4, 5, 0, plus530)},
		{"2000-01-02T03:04:05+0530", time.Date(2000, 1, 2, 3, 4, 5, 0, plus530)},
	}
	for _, tc := range cases {
		got, err := ParseDateTime(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %v want %v", tc.in, got, tc.want)
	}

	for _, bad := range []string{"", "2000-01-02", "02/01/2000 03:04", "2000-13-02T03:04:05", "2000-01-02T25:00:00", "2000-01-02T03:04:05 PM"} {
		_, err := ParseDateTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatDateTime(t *testing.T) {
	assert.Equal(t, "2000-01-02T00:00:00", FormatDateTime(time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2000-01-02T00:00:00.500000", FormatDateTime(time.Date(2000, 1, 2, 0, 0, 0, 500_000_000, time.UTC)))
	assert.Equal(t, "2000-01-02T00:00:00-03:00", FormatDateTime(time.Date(2000, 1, 2, 0, 0, 0, 0, time.FixedZone("", -3*3600))))
}

func TestIntCoercer(t *testing.T) {
	for _, raw := range []any{float64(3), "3", int32(3)} {
		v, err := IntCoercer{}.Load(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	}
	_, err := IntCoercer{}.Load(3.5)
	assert.Error(t, err)
	_, err = IntCoercer{}.Load(true)
	assert.Error(t, err)
}

func TestFloatCoercerDumpsNumeric(t *testing.T) {
	var n pgtype.Numeric
	require.NoError(t, n.Scan("12.5"))
	v, err := FloatCoercer{}.Dump(n)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)
}

func TestUUIDCoercer(t *testing.T) {
	raw := [16]byte{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}
	v, err := UUIDCoercer{}.Dump(raw)
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", v)

	v, err = UUIDCoercer{}.Load("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", v)
	_, err = UUIDCoercer{}.Load("nope")
	assert.Error(t, err)
}

func TestTimeOfDayCoercer(t *testing.T) {
	v, err := TimeOfDayCoercer{}.Dump(pgtype.Time{Microseconds: (13*3600+5*60+7)*1_000_000 + 42, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, "13:05:07.000042", v)
	_, err = TimeOfDayCoercer{}.Load("1:5")
	assert.Error(t, err)
}

func TestRules(t *testing.T) {
	col := &model.Column{Name: "at", Type: model.TypeDateTime}
	assert.IsType(t, DateTimeCoercer{}, DefaultRules().Detect(col))
	assert.Nil(t, DefaultRules().Detect(&model.Column{Name: "s", Type: model.TypeString}))

	custom := DefaultRules().With(Rule{
		Name:  "date",
		Match: func(c *model.Column) bool { return c.Name == "at" },
		New:   func(*model.Column) Coercer { return DateCoercer{} },
	})
	assert.IsType(t, DateCoercer{}, custom.Detect(col))

	c, err := custom.Named(NoCoercer, col)
	require.NoError(t, err)
	assert.Nil(t, c)
	_, err = custom.Named("roman", col)
	assert.Error(t, err)
}
