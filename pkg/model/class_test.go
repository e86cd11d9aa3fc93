package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLoaderKind(t *testing.T) {
	tests := []struct {
		input string
		want  LoaderKind
	}{
		{"system", LoaderKindSystem},
		{"bootstrap", LoaderKindSystem},
		{"extension", LoaderKindExtension},
		{"platform", LoaderKindExtension},
		{"application", LoaderKindApplication},
		{"app", LoaderKindApplication},
		{"custom", LoaderKindCustom},
		{"somebody-else", LoaderKindCustom},
		{"", LoaderKindCustom},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLoaderKind(tt.input))
		})
	}
}

func TestLoaderKind_String(t *testing.T) {
	assert.Equal(t, "system", LoaderKindSystem.String())
	assert.Equal(t, "extension", LoaderKindExtension.String())
	assert.Equal(t, "application", LoaderKindApplication.String())
	assert.Equal(t, "custom", LoaderKindCustom.String())
	assert.Equal(t, "unknown", LoaderKind(99).String())
}

func TestCheckOutcome_String(t *testing.T) {
	assert.Equal(t, "verified", OutcomeVerified.String())
	assert.Equal(t, "deferred", OutcomeDeferred.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "unknown", CheckOutcome(42).String())
}
