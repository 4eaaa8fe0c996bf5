package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corpnet/helpdesk/internal/domain"
)

func TestLikePrefixEscapesWildcards(t *testing.T) {
	assert.Equal(t, "SUP-2025-%", likePrefix(domain.TicketNumberPrefix("sup", 2025)))
	assert.Equal(t, `HW\_X-2025-%`, likePrefix(domain.TicketNumberPrefix("hw_x", 2025)))
	assert.Equal(t, `A\%B-2025-%`, likePrefix("A%B-2025-"))
	assert.Equal(t, `C\\D-%`, likePrefix(`C\D-`))
}
