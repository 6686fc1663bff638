package logging

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", true)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = New("loud", false)
	assert.Error(t, err)
}

func TestErrorFields(t *testing.T) {
	plain := ErrorFields(errors.New("boom"))
	assert.Len(t, plain, 1)

	wrapped := ErrorFields(goerr.Wrap(errors.New("boom"), "search failed", goerr.V("owner", "chat-1")))
	require.Len(t, wrapped, 2)
	assert.Equal(t, "values", wrapped[1].Key)
}
