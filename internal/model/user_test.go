package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Tendai Moyo", User{FirstName: "Tendai", Surname: "Moyo"}.FullName())
	assert.Equal(t, "Tendai", User{FirstName: "Tendai"}.FullName())
	assert.Equal(t, "Moyo", User{Surname: "Moyo"}.FullName())
	assert.Equal(t, "", User{}.FullName())
}
