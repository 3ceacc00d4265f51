package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/averba/model-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblem_MarshalMergesExtensions(t *testing.T) {
	p := api.ValidationError(map[string]string{"messages": "messages is a required field"})

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "about:blank", decoded["type"])
	assert.EqualValues(t, http.StatusBadRequest, decoded["status"])

	fields, ok := decoded["errors"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "messages is a required field", fields["messages"])
}

func TestProblem_LogNeverSerialized(t *testing.T) {
	p := api.ProviderError("upstream returned status 500", errors.New("secret internals"))

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret internals")
	assert.Equal(t, http.StatusBadGateway, p.Status)
	require.Error(t, p.Log)
}

func TestNoModelError_IncludesRemediation(t *testing.T) {
	p := api.NoModelError(errors.New("no active model available"))

	assert.Equal(t, http.StatusServiceUnavailable, p.Status)
	assert.Contains(t, p.Detail, "at least one active model")
}

func TestProblem_ErrorString(t *testing.T) {
	p := api.BadRequestError("no usable prompt in messages")
	assert.Contains(t, p.Error(), "400")
	assert.Contains(t, p.Error(), "no usable prompt")
}
