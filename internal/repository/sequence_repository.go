package repository

import (
	"context"
	"strings"

	"github.com/corpnet/helpdesk/internal/domain"
)

type sequenceRepository struct {
	db DBTX
}

// NewSequenceRepository builds repository.
func NewSequenceRepository(db DBTX) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next upserts the (type, year) counter. Type codes are keyed upper-cased, as
// in the rendered ticket number. The row lock taken by the upsert serializes
// concurrent creates for the same key until the transaction ends.
func (r *sequenceRepository) Next(ctx context.Context, typeCode string, year int) (int, error) {
	const query = `
        INSERT INTO ticket_number_sequences (type_code, year, last_value)
        VALUES ($1, $2, COALESCE((
            SELECT MAX(CAST(substring(ticket_number FROM '([0-9]+)$') AS INTEGER))
            FROM tickets WHERE ticket_number LIKE $3), 0) + 1)
        ON CONFLICT (type_code, year)
        DO UPDATE SET last_value = ticket_number_sequences.last_value + 1
        RETURNING last_value`
	code := strings.ToUpper(typeCode)
	var next int
	if err := r.db.QueryRow(ctx, query, code, year, likePrefix(domain.TicketNumberPrefix(code, year))).Scan(&next); err != nil {
		return 0, mapError(err)
	}
	return next, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern matching values that start with prefix.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
