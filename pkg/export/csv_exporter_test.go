package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"student", "lesson"},
		Rows: []map[string]string{
			{"student": "陳大文", "lesson": "Greetings"},
			{"student": "=HYPERLINK(\"x\")", "lesson": ""},
		},
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))

	body := string(out[len(utf8BOM):])
	assert.Equal(t, "student,lesson\n陳大文,Greetings\n\"'=HYPERLINK(\"\"x\"\")\",\n", body)
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
