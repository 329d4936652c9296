package tss

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewParameters(t *testing.T) {
	type args struct {
		rank   int
		size   int
		bits   int
		rounds int
		e      []*big.Int
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
	}{{
		name:    "Good parameters",
		args:    args{0, 4, 1024, 20, nil},
		wantErr: false,
	}, {
		name:    "Good parameters: single rank",
		args:    args{0, 1, 64, 0, nil},
		wantErr: false,
	}, {
		name:    "Good parameters: explicit exponent",
		args:    args{3, 4, 512, 5, []*big.Int{big.NewInt(3)}},
		wantErr: false,
	}, {
		name:    "Bad parameters: empty group",
		args:    args{0, 0, 1024, 20, nil},
		wantErr: true,
	}, {
		name:    "Bad parameters: negative rank",
		args:    args{-1, 4, 1024, 20, nil},
		wantErr: true,
	}, {
		name:    "Bad parameters: rank >= size",
		args:    args{4, 4, 1024, 20, nil},
		wantErr: true,
	}, {
		name:    "Bad parameters: rank beyond 16 bits",
		args:    args{MaxRank + 1, MaxRank + 2, 1024, 20, nil},
		wantErr: true,
	}, {
		name:    "Bad parameters: non-positive bits",
		args:    args{0, 1, 0, 20, nil},
		wantErr: true,
	}, {
		name:    "Bad parameters: odd bits",
		args:    args{0, 1, 1023, 20, nil},
		wantErr: true,
	}, {
		name:    "Bad parameters: even exponent",
		args:    args{0, 1, 1024, 20, []*big.Int{big.NewInt(4)}},
		wantErr: true,
	}, {
		name:    "Bad parameters: two exponents",
		args:    args{0, 1, 1024, 20, []*big.Int{big.NewInt(3), big.NewInt(5)}},
		wantErr: true,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParameters(tt.args.rank, tt.args.size, tt.args.bits, tt.args.rounds, tt.args.e...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewParameters() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				assert.Equal(t, InputError, KindOf(err))
			}
		})
	}
}

func TestParametersCoercesNegativeRounds(t *testing.T) {
	params, err := NewParameters(1, 2, 128, -3)
	assert.NoError(t, err)
	assert.Equal(t, 1, params.Rounds())
	assert.Equal(t, 64, params.HalfBits())
	assert.False(t, params.IsCoordinator())
	assert.Equal(t, int64(65537), params.PublicExponent().Int64())
}
