package output

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := New(FormatJSON)
	f.SetWriter(&buf)

	require.NoError(t, f.Output(map[string]any{"keys": []string{"a"}}, nil))
	assert.JSONEq(t, `{"keys":["a"]}`, buf.String())
}

func TestFormatter_Text(t *testing.T) {
	var buf bytes.Buffer
	f := New(FormatText)
	f.SetWriter(&buf)

	require.NoError(t, f.Output("ignored", func(w io.Writer) error {
		return Table(w, []string{"KEY", "SIZE"}, [][]string{{"report", "11"}, {"a", "1"}})
	}))
	assert.Equal(t, "KEY     SIZE\nreport  11\na       1\n", buf.String())

	buf.Reset()
	require.NoError(t, f.Output(42, nil))
	assert.Equal(t, "42\n", buf.String())
}

func TestFormatter_Unsupported(t *testing.T) {
	assert.Error(t, New(Format("yaml")).Output(1, nil))
}

func TestGetFormatFromCmd(t *testing.T) {
	tests := []struct {
		value   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"xml", FormatText, true},
	}
	for _, tt := range tests {
		cmd := &cobra.Command{}
		AddFormatFlag(cmd)
		require.NoError(t, cmd.Flags().Set("output", tt.value))

		got, err := GetFormatFromCmd(cmd)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.wantErr, err != nil, tt.value)
	}
}
