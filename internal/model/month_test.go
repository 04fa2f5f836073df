package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveBilledMonth_BothDelimiters(t *testing.T) {
	slash, err := DeriveBilledMonth("31/10/2025")
	require.NoError(t, err)

	dash, err := DeriveBilledMonth("31-10-2025")
	require.NoError(t, err)

	assert.Equal(t, "OCTUBRE", slash)
	assert.Equal(t, slash, dash)
}

func TestDeriveBilledMonth_AllMonths(t *testing.T) {
	expected := []string{
		"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
		"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
	}
	for m := 1; m <= 12; m++ {
		name, err := DeriveBilledMonth(fmt.Sprintf("15-%02d-2025", m))
		require.NoError(t, err)
		assert.Equal(t, expected[m-1], name)
	}
}

func TestDeriveBilledMonth_Unparseable(t *testing.T) {
	_, err := DeriveBilledMonth("not a date")
	assert.Error(t, err)

	_, err = DeriveBilledMonth("2025-10-31") // wrong field order
	assert.Error(t, err)

	_, err = DeriveBilledMonth("")
	assert.Error(t, err)
}
