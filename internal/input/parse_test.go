package input

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ICCIDX/internal/domain"
)

func TestParse_RawKeepsPastedFormat(t *testing.T) {
	p, err := Parse("717814328\n717519988", Options{Mode: ModeRaw})
	require.NoError(t, err)
	if diff := cmp.Diff([]domain.Msisdn{"717814328", "717519988"}, p.Valid); diff != "" {
		t.Fatalf("Valid 不符合预期 (-want +got):\n%s", diff)
	}
	assert.Empty(t, p.Invalid)
}

func TestParse_RawTrimsAndDropsBlankLines(t *testing.T) {
	p, err := Parse("  +252 71 7814328 \r\n\n\t717519988\n", Options{Mode: ModeRaw})
	require.NoError(t, err)
	assert.Equal(t, []domain.Msisdn{"+252 71 7814328", "717519988"}, p.Valid)
}

func TestParse_EmptyInput(t *testing.T) {
	for _, mode := range []Mode{ModeStrict, ModeDigits, ModeRaw, ModeIntl} {
		_, err := Parse("  \n\t ", Options{Mode: mode})
		require.ErrorIs(t, err, ErrEmptyInput, "mode=%s", mode)
		assert.Equal(t, "Please enter at least one MSISDN.", err.Error())
	}
}

func TestParse_StrictPartitionsValidAndInvalid(t *testing.T) {
	p, err := Parse("717814328\n12345\n717519988\n617357608\n7173576089", Options{Mode: ModeStrict})
	require.NoError(t, err)
	assert.Equal(t, []domain.Msisdn{"717814328", "717519988"}, p.Valid)
	assert.Equal(t, []string{"12345", "617357608", "7173576089"}, p.Invalid)
	assert.Equal(t, `Skipped 3 invalid number(s). Must start with "71" and be 9 digits.`, p.Warning())
}

func TestParse_StrictNoValidEntries(t *testing.T) {
	p, err := Parse("hello\n12345", Options{Mode: ModeStrict})
	require.ErrorIs(t, err, ErrNoValidEntries)
	assert.Len(t, p.Invalid, 2)
}

func TestParse_DefaultModeIsStrict(t *testing.T) {
	p, err := Parse("717814328\nabc", Options{})
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, p.Mode)
	assert.Equal(t, []domain.Msisdn{"717814328"}, p.Valid)
}

func TestParse_DigitsSplitsAndStrips(t *testing.T) {
	p, err := Parse("717-814-328, 717519988\n(717) 357 608\t１２３\n1234567890123456\n--", Options{Mode: ModeDigits})
	require.NoError(t, err)
	assert.Equal(t, []domain.Msisdn{"717814328", "717519988", "717", "357", "608", "123"}, p.Valid)
	assert.Equal(t, []string{"1234567890123456", "--"}, p.Invalid)
	assert.Empty(t, Parsed{Mode: ModeDigits}.Warning())
}

func TestParse_IntlUsesNationalSignificantNumber(t *testing.T) {
	p, err := Parse("+252 71 7814328\n717519988\nnot-a-number", Options{Mode: ModeIntl, Region: "so"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Msisdn{"717814328", "717519988"}, p.Valid)
	assert.Equal(t, []string{"not-a-number"}, p.Invalid)
}

func TestParse_Idempotent(t *testing.T) {
	inputs := map[Mode]string{
		ModeStrict: "717814328\nbad\n 717519988 ",
		ModeDigits: "717-814-328, 717519988 ; 42",
		ModeRaw:    " a \n\n b c \n",
		ModeIntl:   "+252 71 7814328\n717519988",
	}
	for mode, raw := range inputs {
		t.Run(string(mode), func(t *testing.T) {
			first, err := Parse(raw, Options{Mode: mode})
			require.NoError(t, err)
			second, err := Parse(Join(first.Valid), Options{Mode: mode})
			require.NoError(t, err)
			if diff := cmp.Diff(first.Valid, second.Valid); diff != "" {
				t.Fatalf("再次解析结果不一致 (-first +second):\n%s", diff)
			}
			assert.Empty(t, second.Invalid)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, m)

	m, err = ParseMode(" Digits ")
	require.NoError(t, err)
	assert.Equal(t, ModeDigits, m)

	_, err = ParseMode("loose")
	assert.Error(t, err)
}
