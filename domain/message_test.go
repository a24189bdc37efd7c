package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Stamp_AssignsUTCTimestamp(t *testing.T) {
	req := require.New(t)

	paris := time.FixedZone("CET", 2*60*60)
	at := time.Date(2025, 6, 1, 14, 30, 45, 123456000, paris)

	doc := Stamp(Submission{Username: "Test", Message: "Hello World!"}, at)

	req.Equal("Test", doc.Username)
	req.Equal("Hello World!", doc.Message)
	// Rendered in UTC regardless of the zone the clock handed out.
	req.Equal("2025-06-01 12:30:45.123456", doc.Timestamp)

	parsed, err := time.Parse(TimestampLayout, doc.Timestamp)
	req.NoError(err)
	req.True(parsed.Equal(at))
}

func Test_Stamp_KeepsEmptyFields(t *testing.T) {
	req := require.New(t)

	doc := Stamp(Submission{}, time.Now())

	req.Empty(doc.Username)
	req.Empty(doc.Message)
	req.NotEmpty(doc.Timestamp)
}
