package postgresql

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/uuid"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

const ticketColumns = `id, subject, customer_name, customer_email, status, priority, channel, assignee, tags, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.Subject, &t.CustomerName, &t.CustomerEmail, &t.Status, &t.Priority, &t.Channel, &t.Assignee, pq.Array(&t.Tags), &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func (s *TenantDataStore) CreateTicket(ctx context.Context, t *models.Ticket) apperrors.Error {
	conn, alias, err := resolve(ctx, s.r, models.EntityTicket, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	query := `
		INSERT INTO tickets (subject, customer_name, customer_email, status, priority, channel, assignee, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	errdb := conn.QueryRowContext(ctx, query, t.Subject, t.CustomerName, t.CustomerEmail, t.Status, t.Priority, t.Channel, t.Assignee, pq.Array(t.Tags)).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to create ticket")
		return dberror.ErrDatabase.Err(errdb)
	}
	t.DBAlias = alias
	return nil
}

func (s *TenantDataStore) GetTicket(ctx context.Context, id int64) (*models.Ticket, apperrors.Error) {
	conn, alias, err := resolve(ctx, s.r, models.EntityTicket, tenantrouter.OpRead)
	if err != nil {
		return nil, err
	}
	t, errdb := scanTicket(conn.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("ticket not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Int64("ticket_id", id).Msg("failed to get ticket")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	t.DBAlias = alias
	return t, nil
}

func (s *TenantDataStore) ListTickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, apperrors.Error) {
	conn, alias, err := resolve(ctx, s.r, models.EntityTicket, tenantrouter.OpRead)
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	add("status", filter.Status)
	add("priority", filter.Priority)
	add("assignee", filter.Assignee)

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, errdb := conn.QueryContext(ctx, query, args...)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list tickets")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()
	tickets := []*models.Ticket{}
	for rows.Next() {
		t, errdb := scanTicket(rows)
		if errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		t.DBAlias = alias
		tickets = append(tickets, t)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return tickets, nil
}

func (s *TenantDataStore) UpdateTicket(ctx context.Context, t *models.Ticket) apperrors.Error {
	conn, alias, err := resolve(ctx, s.r, models.EntityTicket, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	if t.DBAlias != "" {
		if rerr := s.r.AllowRelation(t.DBAlias, alias); rerr != nil {
			return asAppError(rerr)
		}
	}
	query := `
		UPDATE tickets
		SET status = $2, priority = $3, assignee = $4, tags = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
	errdb := conn.QueryRowContext(ctx, query, t.ID, t.Status, t.Priority, t.Assignee, pq.Array(t.Tags)).Scan(&t.UpdatedAt)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("ticket not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Int64("ticket_id", t.ID).Msg("failed to update ticket")
		return dberror.ErrDatabase.Err(errdb)
	}
	t.DBAlias = alias
	return nil
}

// AddTicketMessage appends m to ticket. The message must resolve to the
// same database the ticket was read from.
func (s *TenantDataStore) AddTicketMessage(ctx context.Context, ticket *models.Ticket, m *models.TicketMessage) apperrors.Error {
	conn, alias, err := resolve(ctx, s.r, models.EntityTicketMessage, tenantrouter.OpWrite)
	if err != nil {
		return err
	}
	if rerr := s.r.AllowRelation(ticket.DBAlias, alias); rerr != nil {
		log.Ctx(ctx).Error().Err(rerr).Int64("ticket_id", ticket.ID).Msg("rejected cross database message")
		return asAppError(rerr)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.TicketID = ticket.ID
	query := `
		INSERT INTO ticket_messages (id, ticket_id, sender, body)
		VALUES ($1, $2, $3, $4)
		RETURNING timestamp`
	errdb := conn.QueryRowContext(ctx, query, m.ID, m.TicketID, m.Sender, m.Body).Scan(&m.Timestamp)
	if errdb != nil {
		if isForeignKeyViolation(errdb) {
			return dberror.ErrNotFound.Msg("ticket not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Int64("ticket_id", ticket.ID).Msg("failed to add ticket message")
		return dberror.ErrDatabase.Err(errdb)
	}
	m.DBAlias = alias
	return nil
}

func (s *TenantDataStore) ListTicketMessages(ctx context.Context, ticket *models.Ticket) ([]*models.TicketMessage, apperrors.Error) {
	conn, alias, err := resolve(ctx, s.r, models.EntityTicketMessage, tenantrouter.OpRead)
	if err != nil {
		return nil, err
	}
	if rerr := s.r.AllowRelation(ticket.DBAlias, alias); rerr != nil {
		return nil, asAppError(rerr)
	}
	query := `
		SELECT id, ticket_id, sender, body, timestamp
		FROM ticket_messages
		WHERE ticket_id = $1
		ORDER BY timestamp`
	rows, errdb := conn.QueryContext(ctx, query, ticket.ID)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list ticket messages")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()
	messages := []*models.TicketMessage{}
	for rows.Next() {
		var m models.TicketMessage
		if errdb := rows.Scan(&m.ID, &m.TicketID, &m.Sender, &m.Body, &m.Timestamp); errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		m.DBAlias = alias
		messages = append(messages, &m)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return messages, nil
}
