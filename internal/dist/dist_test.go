package dist

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{
			name: "valid uniform",
			spec: Spec{Kind: Uniform, Min: 1, Max: 2},
		},
		{
			name: "valid normal",
			spec: Spec{Kind: Normal, Mean: 0, Sigma: 1, Min: -3, Max: 3},
		},
		{
			name: "valid lognormal",
			spec: Spec{Kind: Lognormal, Mean: 100, Sigma: 0.5, Min: 10, Max: 1000},
		},
		{
			name:    "unknown kind",
			spec:    Spec{Kind: "triangular", Min: 0, Max: 1},
			wantErr: "unknown distribution kind",
		},
		{
			name:    "inverted bounds",
			spec:    Spec{Kind: Uniform, Min: 5, Max: 1},
			wantErr: "min 5 exceeds max 1",
		},
		{
			name:    "negative sigma",
			spec:    Spec{Kind: Normal, Sigma: -1, Min: 0, Max: 1},
			wantErr: "sigma must be non-negative",
		},
		{
			name:    "lognormal zero mean",
			spec:    Spec{Kind: Lognormal, Mean: 0, Sigma: 0.5, Min: 0, Max: 1},
			wantErr: "lognormal mean must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate("section.field")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), "section.field")

			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestValidateNonNegativeRejectsNegativeMin(t *testing.T) {
	spec := Spec{Kind: Uniform, Min: -0.1, Max: 0.5}
	require.NoError(t, spec.Validate("f"))
	assert.ErrorContains(t, spec.ValidateNonNegative("f"), "min must be non-negative")
}

func TestSampleStaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))

	specs := map[string]Spec{
		"uniform":   {Kind: Uniform, Min: 10, Max: 20},
		"normal":    {Kind: Normal, Mean: 15, Sigma: 10, Min: 10, Max: 20},
		"lognormal": {Kind: Lognormal, Mean: 15, Sigma: 1.5, Min: 10, Max: 20},
	}

	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				v := spec.Sample(rng)
				assert.GreaterOrEqual(t, v, spec.Min)
				assert.LessOrEqual(t, v, spec.Max)
			}
		})
	}
}

func TestSampleIsDeterministic(t *testing.T) {
	spec := Spec{Kind: Normal, Mean: 50, Sigma: 5, Min: 0, Max: 100}

	a := rand.New(rand.NewPCG(7, 1))
	b := rand.New(rand.NewPCG(7, 1))
	for i := 0; i < 100; i++ {
		assert.Equal(t, spec.Sample(a), spec.Sample(b))
	}
}

func TestZeroSigmaNormalIsConstant(t *testing.T) {
	spec := Spec{Kind: Normal, Mean: 99.98, Sigma: 0, Min: 99, Max: 100}
	rng := rand.New(rand.NewPCG(1, 0))
	for i := 0; i < 10; i++ {
		assert.Equal(t, 99.98, spec.Sample(rng))
	}
}
