package model

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentPart_MarshalJSON(t *testing.T) {
	t.Run("text part", func(t *testing.T) {
		b, err := json.Marshal(TextPart("hello"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"hello"}`, string(b))
	})

	t.Run("empty text still emits the key", func(t *testing.T) {
		b, err := json.Marshal(TextPart(""))
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":""}`, string(b))
	})

	t.Run("inline binary is base64 encoded", func(t *testing.T) {
		raw := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}
		b, err := json.Marshal(InlineBinaryPart("application/pdf", raw))
		require.NoError(t, err)

		var decoded struct {
			InlineData struct {
				MIMEType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
		}
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, "application/pdf", decoded.InlineData.MIMEType)

		data, err := base64.StdEncoding.DecodeString(decoded.InlineData.Data)
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})
}

func TestRecord_SetKeepsFirstPosition(t *testing.T) {
	r := NewRecord(
		Field{Name: "a", Value: NumberValue("1")},
		Field{Name: "b", Value: StringValue("x")},
	)
	r.Set("a", NumberValue("2"))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", v.String())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestValue_Float(t *testing.T) {
	f, ok := NumberValue("1.5e3").Float()
	assert.True(t, ok)
	assert.Equal(t, 1500.0, f)

	_, ok = StringValue("3").Float()
	assert.False(t, ok)

	assert.Equal(t, "true", BoolValue(true).String())
}
