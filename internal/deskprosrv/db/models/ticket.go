package models

import (
	"time"

	"github.com/google/uuid"
)

/*
 tickets
     Column     |           Type           | Nullable | Default
----------------+--------------------------+----------+---------
 id             | bigserial                | not null |
 subject        | character varying(255)   | not null |
 customer_name  | character varying(255)   | not null | ''
 customer_email | character varying(254)   | not null | ''
 status         | character varying(20)    | not null | 'open'
 priority       | character varying(20)    | not null | 'medium'
 channel        | character varying(20)    | not null | 'email'
 assignee       | character varying(255)   | not null | ''
 tags           | text[]                   | not null | '{}'
 created_at     | timestamp with time zone | not null | now()
 updated_at     | timestamp with time zone | not null | now()

 ticket_messages
   Column   |           Type           | Nullable | Default
------------+--------------------------+----------+---------
 id         | uuid                     | not null |
 ticket_id  | bigint                   | not null |
 sender     | character varying(255)   | not null |
 body       | text                     | not null |
 timestamp  | timestamp with time zone | not null | now()
Foreign-key constraints:
    "ticket_messages_ticket_id_fkey" FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE
*/

const (
	TicketStatusOpen     = "open"
	TicketStatusPending  = "pending"
	TicketStatusResolved = "resolved"
	TicketStatusClosed   = "closed"

	TicketPriorityLow    = "low"
	TicketPriorityMedium = "medium"
	TicketPriorityHigh   = "high"
	TicketPriorityUrgent = "urgent"

	TicketChannelEmail = "email"
	TicketChannelChat  = "chat"
	TicketChannelPhone = "phone"
	TicketChannelWeb   = "web"
)

type Ticket struct {
	ID            int64     `db:"id" json:"id"`
	Subject       string    `db:"subject" json:"subject"`
	CustomerName  string    `db:"customer_name" json:"customer_name"`
	CustomerEmail string    `db:"customer_email" json:"customer_email"`
	Status        string    `db:"status" json:"status"`
	Priority      string    `db:"priority" json:"priority"`
	Channel       string    `db:"channel" json:"channel"`
	Assignee      string    `db:"assignee" json:"assignee"`
	Tags          []string  `db:"tags" json:"tags"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	// DBAlias is the database the ticket was read from or written to.
	DBAlias string `db:"-" json:"-"`
}

type TicketMessage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TicketID  int64     `db:"ticket_id" json:"ticket_id"`
	Sender    string    `db:"sender" json:"sender"`
	Body      string    `db:"body" json:"body"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`

	DBAlias string `db:"-" json:"-"`
}

// TicketFilter narrows ListTickets. Empty fields match everything.
type TicketFilter struct {
	Status   string
	Priority string
	Assignee string
	Limit    int
}
