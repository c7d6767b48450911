package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendPayload struct {
	ToUserID  string   `json:"toUserId"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"imageUrls"`
	Page      int      `json:"page"`
}

func TestPayloadFromMap(t *testing.T) {
	out, err := Payload[sendPayload](map[string]any{
		"toUserId":  " u-2 ",
		"content":   "hi",
		"imageUrls": []any{"a.png", "b.png"},
		"page":      float64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "u-2", out.ToUserID)
	assert.Equal(t, []string{"a.png", "b.png"}, out.ImageURLs)
	assert.Equal(t, 3, out.Page)
}

func TestPayloadFromRaw(t *testing.T) {
	out, err := Payload[sendPayload](json.RawMessage(`{"toUserId":"u-2","imageUrls":"x.png","page":"2"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x.png"}, out.ImageURLs)
	assert.Equal(t, 2, out.Page)
}

func TestPayloadErrors(t *testing.T) {
	_, err := Payload[sendPayload](nil)
	assert.Error(t, err)

	_, err = Payload[sendPayload](json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	_, err = Payload[sendPayload](42)
	assert.Error(t, err)

	_, err = Payload[sendPayload](map[string]any{"extra": 1}, Options{ErrorUnused: true})
	assert.Error(t, err)
}
