package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverableSchema_ValidJSON(t *testing.T) {
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(DeliverableSchema), &v))
	assert.Equal(t, "object", v["type"])
	assert.Equal(t, false, v["additionalProperties"])
}

func TestDeliverableSchema_ClosedAtEveryLevel(t *testing.T) {
	var v struct {
		Properties struct {
			Sections struct {
				MinItems int `json:"minItems"`
				Items    struct {
					AdditionalProperties bool `json:"additionalProperties"`
				} `json:"items"`
			} `json:"sections"`
			Citations struct {
				Items struct {
					AdditionalProperties bool `json:"additionalProperties"`
				} `json:"items"`
			} `json:"citations"`
			Metadata struct {
				AdditionalProperties bool `json:"additionalProperties"`
			} `json:"metadata"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(DeliverableSchema), &v))

	assert.Equal(t, 1, v.Properties.Sections.MinItems)
	assert.False(t, v.Properties.Sections.Items.AdditionalProperties)
	assert.False(t, v.Properties.Citations.Items.AdditionalProperties)
	assert.False(t, v.Properties.Metadata.AdditionalProperties)
}
