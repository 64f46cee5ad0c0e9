package spec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/specd/internal/domain/errs"
	"github.com/lllypuk/specd/internal/domain/spec"
)

func TestValidateName(t *testing.T) {
	t.Run("valid names", func(t *testing.T) {
		for _, name := range []string{
			"payments-api",
			"payments_api.v2",
			"A",
			"0-starts-with-digit",
			strings.Repeat("a", spec.MaxNameLength),
		} {
			assert.NoError(t, spec.ValidateName(name), name)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		require.ErrorIs(t, spec.ValidateName(""), errs.ErrValidation)
	})

	t.Run("too long", func(t *testing.T) {
		name := strings.Repeat("a", spec.MaxNameLength+1)
		require.ErrorIs(t, spec.ValidateName(name), errs.ErrValidation)
	})

	t.Run("invalid characters", func(t *testing.T) {
		for _, name := range []string{"has space", "slash/name", "tab\tname", "кириллица", "emoji🙂"} {
			assert.ErrorIs(t, spec.ValidateName(name), errs.ErrValidation, name)
		}
	})
}

func TestValidateContent(t *testing.T) {
	t.Run("valid yaml", func(t *testing.T) {
		for _, content := range []string{
			"a: 1",
			"openapi: 3.0.0\ninfo:\n  title: payments",
			"- one\n- two",
			"plain scalar",
		} {
			assert.NoError(t, spec.ValidateContent(content), content)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		require.ErrorIs(t, spec.ValidateContent(""), errs.ErrValidation)
	})

	t.Run("too large", func(t *testing.T) {
		content := "key: " + strings.Repeat("x", spec.MaxContentBytes)
		require.ErrorIs(t, spec.ValidateContent(content), errs.ErrValidation)
	})

	t.Run("exactly at the ceiling", func(t *testing.T) {
		content := "key: " + strings.Repeat("x", spec.MaxContentBytes-5)
		require.Len(t, content, spec.MaxContentBytes)
		assert.NoError(t, spec.ValidateContent(content))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		require.ErrorIs(t, spec.ValidateContent("a: [unclosed"), errs.ErrValidation)
	})
}
