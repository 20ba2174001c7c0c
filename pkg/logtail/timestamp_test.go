package logtail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractTimestamp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want time.Time
		ok   bool
	}{
		{"iso zulu", `I, [2024-01-15T10:30:00.123456Z #1] INFO -- : Started`, time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC), true},
		{"space separated", `2024-01-15 10:30:00 Processing`, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"compact offset", `at 2024-01-15 10:30:00 +0100 done`, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), true},
		{"colon offset", `ts=2024-01-15T10:30:00-05:00`, time.Date(2024, 1, 15, 15, 30, 0, 0, time.UTC), true},
		{"none", `    from app/models/user.rb:12`, time.Time{}, false},
		{"date only", `released 2024-01-15`, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTimestamp(tt.line, time.UTC)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestExtractTimestampUsesLocationForZoneless(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	got, ok := ExtractTimestamp("2024-01-15 10:30:00 hello", loc)
	assert.True(t, ok)
	assert.True(t, time.Date(2024, 1, 15, 7, 30, 0, 0, time.UTC).Equal(got))
}
