package materials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestVariants(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"586243", []string{"586243", "586.243"}},
		{"586.243", []string{"586.243", "586243"}},
		{" 1234 ", []string{"1234", "1.234"}},
		{"123", []string{"123"}},
		{"ABC-01", []string{"ABC-01"}},
		{"", []string{""}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Variants(c.in), "variants of %q", c.in)
	}
}

func TestVariantsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		code := rapid.StringMatching(`[1-9][0-9]{3,9}`).Draw(t, "code")
		vs := Variants(code)

		assert.Contains(t, vs, code)
		assert.Contains(t, vs, code[:len(code)-3]+"."+code[len(code)-3:])
		for _, v := range vs {
			assert.ElementsMatch(t, vs, Variants(v))
			assert.Equal(t, Key(code), Key(v))
		}
	})
}

func TestVariantsNeverEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		code := rapid.String().Draw(t, "code")
		assert.NotEmpty(t, Variants(code))
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "586243", Key("586.243"))
	assert.Equal(t, "586243", Key("586243"))
	assert.Equal(t, "MAT-9", Key(" MAT-9 "))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "562.898", Prefix("562.898-01"))
	assert.Equal(t, "562898", Prefix(" 562898 "))
}

func TestExpandAll(t *testing.T) {
	got := ExpandAll([]string{"586243", "586.243", "", "12"})
	assert.Equal(t, []string{"12", "586.243", "586243"}, got)
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"586243", "777"}, Distinct([]string{"586243", " ", "586.243", "777"}))
}
