package orders

import (
	"context"
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

var orderIDPattern = regexp.MustCompile(`^AVB[A-Z]{2}\d{1,5}$`)

func neverExists(context.Context, string) (bool, error) { return false, nil }

func TestGenerateMatchesPattern(t *testing.T) {
	gen := NewGenerator(rand.NewSource(1), 20)

	id, err := gen.Generate(context.Background(), "52312345678", neverExists)
	require.NoError(t, err)
	assert.Regexp(t, orderIDPattern, id)
	// last five digits of the DNI survive verbatim
	assert.Equal(t, "45678", id[len(id)-5:])
}

func TestGenerateShortDNI(t *testing.T) {
	gen := NewGenerator(rand.NewSource(1), 20)

	id, err := gen.Generate(context.Background(), "123", neverExists)
	require.NoError(t, err)
	assert.Equal(t, "123", id[len(id)-3:])
	assert.Regexp(t, orderIDPattern, id)
}

func TestGenerateStripsNonDigits(t *testing.T) {
	gen := NewGenerator(rand.NewSource(1), 20)

	id, err := gen.Generate(context.Background(), "V-2398.7654-1", neverExists)
	require.NoError(t, err)
	assert.Equal(t, "76541", id[len(id)-5:])
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	gen := NewGenerator(rand.NewSource(7), 20)

	calls := 0
	exists := func(ctx context.Context, id string) (bool, error) {
		calls++
		return calls < 3, nil
	}

	id, err := gen.Generate(context.Background(), "12345678", exists)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Regexp(t, orderIDPattern, id)
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	gen := NewGenerator(rand.NewSource(7), 5)

	calls := 0
	alwaysTaken := func(ctx context.Context, id string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := gen.Generate(context.Background(), "12345678", alwaysTaken)
	require.Error(t, err)
	assert.Equal(t, 5, calls)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeGeneration, appErr.Code())
}

func TestGenerateEmptyDNI(t *testing.T) {
	gen := NewGenerator(rand.NewSource(1), 20)

	_, err := gen.Generate(context.Background(), "", neverExists)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}
