package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/seedgraph/internal/ir"
)

func TestBcryptHook(t *testing.T) {
	r := NewRegistry(WithBcryptCost(bcrypt.MinCost))

	out, err := r.Apply(Bcrypt, ir.IRString("s3cret"))
	require.NoError(t, err)

	hash, ok := out.(ir.IRString)
	require.True(t, ok)
	assert.NotEqual(t, "s3cret", string(hash))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestStringHooks(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		hook string
		in   string
		want string
	}{
		{Lower, "Maria@Example.COM", "maria@example.com"},
		{Trim, "  moto \n", "moto"},
		{NFC, "Jose\u0301", "Jos\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.hook, func(t *testing.T) {
			out, err := r.Apply(tt.hook, ir.IRString(tt.in))
			require.NoError(t, err)
			assert.Equal(t, ir.IRString(tt.want), out)
		})
	}
}

func TestApplyPassesNull(t *testing.T) {
	out, err := NewRegistry().Apply(Lower, ir.IRNull{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, out)
}

func TestApplyRejectsNonString(t *testing.T) {
	_, err := NewRegistry().Apply(Lower, ir.IRInt(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform lower")
}

func TestApplyUnknownHook(t *testing.T) {
	_, err := NewRegistry().Apply("rot13", ir.IRString("x"))
	require.Error(t, err)
}

func TestRegisterCustomHook(t *testing.T) {
	r := NewRegistry()
	r.Register("redact", func(ir.IRValue) (ir.IRValue, error) { return ir.IRString("***"), nil })

	assert.True(t, r.Has("redact"))
	assert.Equal(t, []string{"bcrypt", "lower", "nfc", "redact", "trim"}, r.Names())

	out, err := r.Apply("redact", ir.IRString("secret"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("***"), out)
}

func TestNilRegistryHasNothing(t *testing.T) {
	var r *Registry
	assert.False(t, r.Has(Bcrypt))
}
