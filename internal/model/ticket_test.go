package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanCheckIn(t *testing.T) {
	assert.True(t, CanCheckIn(TicketIssued))
	assert.True(t, CanCheckIn(TicketCheckedOut), "re-entry after check-out is allowed")
	assert.False(t, CanCheckIn(TicketCheckedIn), "a ticket inside the venue cannot enter again")
	assert.False(t, CanCheckIn(TicketState("revoked")))
}

func TestCanCheckOut(t *testing.T) {
	assert.True(t, CanCheckOut(TicketCheckedIn))
	assert.False(t, CanCheckOut(TicketIssued), "a ticket that never entered cannot leave")
	assert.False(t, CanCheckOut(TicketCheckedOut))
}
