package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketCredential(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		cred, err := NewTicketCredential()
		require.NoError(t, err)
		assert.Len(t, cred, 64, "32 random bytes hex encoded")

		_, err = hex.DecodeString(cred)
		assert.NoError(t, err)

		assert.False(t, seen[cred], "credentials must not repeat")
		seen[cred] = true
	}
}
