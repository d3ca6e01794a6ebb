package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
		ok    bool
	}{
		{"blocking", SeverityBlocking, true},
		{"warning", SeverityWarning, true},
		{"BLOCKING", SeverityBlocking, true},
		{"  warning ", SeverityWarning, true},
		{"error", SeverityWarning, false},
		{"", SeverityWarning, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseSeverity(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSeverityValid(t *testing.T) {
	assert.True(t, SeverityBlocking.Valid())
	assert.True(t, SeverityWarning.Valid())
	assert.False(t, Severity("fatal").Valid())
}

func TestParseDomain(t *testing.T) {
	tests := []struct {
		input string
		want  Domain
		ok    bool
	}{
		{"insurance", DomainInsurance, true},
		{"Banking", DomainBanking, true},
		{"custom", DomainCustom, true},
		{"telecom", DomainCustom, false},
	}

	for _, tt := range tests {
		got, ok := ParseDomain(tt.input)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ok, ok)
	}
}
