package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekDataset() Dataset {
	return Dataset{
		Headers: []string{"Stunde", "Zeit", "Montag"},
		Rows: []map[string]string{
			{"Stunde": "1", "Zeit": "08:00-08:45", "Montag": "MA (Jörg Müller)"},
			{"Stunde": "2", "Zeit": "08:50-09:35", "Montag": ""},
		},
	}
}

func TestCSVRenderSpreadsheetFriendly(t *testing.T) {
	out, err := NewCSVExporter().Render(weekDataset())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	text := string(out[len(utf8BOM):])
	assert.Contains(t, text, "Stunde;Zeit;Montag")
	assert.Contains(t, text, "1;08:00-08:45;MA (Jörg Müller)")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
