package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: " yaml ", want: FormatYAML},
		{in: "table", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteObject(t *testing.T) {
	obj := map[string]int{"count": 42}

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, WriteObject(buf, FormatJSON, obj))
		var result map[string]int
		require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
		assert.Equal(t, 42, result["count"])
	})

	t.Run("yaml", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, WriteObject(buf, FormatYAML, obj))
		var result map[string]int
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &result))
		assert.Equal(t, 42, result["count"])
	})

	t.Run("text needs a formatter", func(t *testing.T) {
		assert.Error(t, WriteObject(&bytes.Buffer{}, FormatText, obj))
	})

	t.Run("unknown", func(t *testing.T) {
		err := WriteObject(&bytes.Buffer{}, Format("xml"), obj)
		assert.EqualError(t, err, "unknown output format: xml")
	})
}
