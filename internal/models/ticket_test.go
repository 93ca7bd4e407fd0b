package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTicketNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^EVS-[0-9A-F]{10}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		number, err := GenerateTicketNumber()
		require.NoError(t, err)
		assert.Regexp(t, pattern, number)
		assert.False(t, seen[number], "duplicate ticket number %s", number)
		seen[number] = true
	}
}

func TestTicketPayloadRoundTrip(t *testing.T) {
	payload := TicketPayload{
		TicketNumber: "EVS-3F9A27C41B",
		BookingID:    uuid.New(),
		EventID:      uuid.New(),
		UserID:       uuid.New(),
		IssuedAt:     time.Now().UTC().Truncate(time.Second),
	}

	encoded, err := EncodePayload(payload)
	require.NoError(t, err)

	decoded, err := DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	_, err := DecodePayload("not json")
	assert.Error(t, err)
}
