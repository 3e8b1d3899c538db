// Package tickets serves the tenant scoped ticket endpoints. Every handler
// runs behind the tenant gate, so the stores it calls resolve to the
// caller's tenant database.
package tickets

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/httpx"
	"github.com/softflow/deskpro/internal/deskprosrv/auth"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
)

type Store interface {
	CreateTicket(ctx context.Context, t *models.Ticket) apperrors.Error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, apperrors.Error)
	ListTickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, apperrors.Error)
	UpdateTicket(ctx context.Context, t *models.Ticket) apperrors.Error
	AddTicketMessage(ctx context.Context, ticket *models.Ticket, m *models.TicketMessage) apperrors.Error
	ListTicketMessages(ctx context.Context, ticket *models.Ticket) ([]*models.TicketMessage, apperrors.Error)
}

type Handler struct {
	Store    Store
	validate *validator.Validate
}

func Router(h *Handler) chi.Router {
	h.validate = validator.New(validator.WithRequiredStructEnabled())
	handlers := []httpx.ResponseHandlerParam{
		{Method: http.MethodGet, Path: "/", Handler: h.listTickets},
		{Method: http.MethodPost, Path: "/", Handler: h.createTicket},
		{Method: http.MethodGet, Path: "/{ticketID}", Handler: h.getTicket},
		{Method: http.MethodPatch, Path: "/{ticketID}", Handler: h.updateTicket},
		{Method: http.MethodPost, Path: "/{ticketID}/messages", Handler: h.addMessage},
	}
	router := chi.NewRouter()
	for _, handler := range handlers {
		router.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
	return router
}

type MessageRsp struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketRsp uses the camelCase field names the frontend expects.
type TicketRsp struct {
	ID            int64        `json:"id"`
	Subject       string       `json:"subject"`
	CustomerName  string       `json:"customerName"`
	CustomerEmail string       `json:"customerEmail"`
	Status        string       `json:"status"`
	Priority      string       `json:"priority"`
	Channel       string       `json:"channel"`
	Assignee      string       `json:"assignee"`
	Tags          []string     `json:"tags"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Messages      []MessageRsp `json:"messages"`
}

func ticketRsp(t *models.Ticket, msgs []*models.TicketMessage) *TicketRsp {
	rsp := &TicketRsp{
		ID:            t.ID,
		Subject:       t.Subject,
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		Status:        t.Status,
		Priority:      t.Priority,
		Channel:       t.Channel,
		Assignee:      t.Assignee,
		Tags:          t.Tags,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Messages:      []MessageRsp{},
	}
	if rsp.Tags == nil {
		rsp.Tags = []string{}
	}
	for _, m := range msgs {
		rsp.Messages = append(rsp.Messages, messageRsp(m))
	}
	return rsp
}

func messageRsp(m *models.TicketMessage) MessageRsp {
	return MessageRsp{ID: m.ID.String(), Sender: m.Sender, Body: m.Body, Timestamp: m.Timestamp}
}

func (h *Handler) listTickets(r *http.Request) (*httpx.Response, error) {
	q := r.URL.Query()
	filter := models.TicketFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Assignee: q.Get("assignee"),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return nil, httpx.ErrInvalidRequest("limit must be a positive integer")
		}
		filter.Limit = n
	}
	tickets, err := h.Store.ListTickets(r.Context(), filter)
	if err != nil {
		return nil, err
	}
	rsp := make([]*TicketRsp, 0, len(tickets))
	for _, t := range tickets {
		rsp = append(rsp, ticketRsp(t, nil))
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rsp}, nil
}

type CreateTicketReq struct {
	Subject       string   `json:"subject" validate:"required,max=255"`
	CustomerName  string   `json:"customerName" validate:"max=255"`
	CustomerEmail string   `json:"customerEmail" validate:"omitempty,email,max=254"`
	Priority      string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Channel       string   `json:"channel" validate:"omitempty,oneof=email chat phone web"`
	Assignee      string   `json:"assignee" validate:"max=255"`
	Tags          []string `json:"tags" validate:"dive,required,max=50"`
	Message       string   `json:"message"`
}

func (h *Handler) createTicket(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req CreateTicketReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	t := &models.Ticket{
		Subject:       req.Subject,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.ToLower(req.CustomerEmail),
		Status:        models.TicketStatusOpen,
		Priority:      orDefault(req.Priority, models.TicketPriorityMedium),
		Channel:       orDefault(req.Channel, models.TicketChannelEmail),
		Assignee:      req.Assignee,
		Tags:          req.Tags,
	}
	if err := h.Store.CreateTicket(ctx, t); err != nil {
		return nil, err
	}
	var msgs []*models.TicketMessage
	if strings.TrimSpace(req.Message) != "" {
		sender := t.CustomerEmail
		if sender == "" {
			sender = senderFromContext(ctx)
		}
		m := &models.TicketMessage{Sender: sender, Body: req.Message}
		if err := h.Store.AddTicketMessage(ctx, t, m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/api/tickets/" + strconv.FormatInt(t.ID, 10),
		Response:   ticketRsp(t, msgs),
	}, nil
}

func (h *Handler) loadTicket(r *http.Request) (*models.Ticket, error) {
	raw := chi.URLParam(r, "ticketID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, httpx.ErrInvalidRequest("invalid ticket id")
	}
	t, terr := h.Store.GetTicket(r.Context(), id)
	if terr != nil {
		if errors.Is(terr, dberror.ErrNotFound) {
			return nil, httpx.ErrNotFound("Ticket " + raw + " not found.")
		}
		return nil, terr
	}
	return t, nil
}

func (h *Handler) getTicket(r *http.Request) (*httpx.Response, error) {
	t, err := h.loadTicket(r)
	if err != nil {
		return nil, err
	}
	msgs, merr := h.Store.ListTicketMessages(r.Context(), t)
	if merr != nil {
		return nil, merr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: ticketRsp(t, msgs)}, nil
}

type UpdateTicketReq struct {
	Status   *string   `json:"status" validate:"omitempty,oneof=open pending resolved closed"`
	Priority *string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Assignee *string   `json:"assignee" validate:"omitempty,max=255"`
	Tags     *[]string `json:"tags" validate:"omitempty,dive,required,max=50"`
}

func (h *Handler) updateTicket(r *http.Request) (*httpx.Response, error) {
	var req UpdateTicketReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	t, err := h.loadTicket(r)
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.Assignee != nil {
		t.Assignee = *req.Assignee
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if uerr := h.Store.UpdateTicket(r.Context(), t); uerr != nil {
		return nil, uerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: ticketRsp(t, nil)}, nil
}

type AddMessageReq struct {
	Body   string `json:"body" validate:"required"`
	Sender string `json:"sender" validate:"max=255"`
}

func (h *Handler) addMessage(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req AddMessageReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest("message body is required")
	}
	t, err := h.loadTicket(r)
	if err != nil {
		return nil, err
	}
	m := &models.TicketMessage{
		Sender: orDefault(req.Sender, senderFromContext(ctx)),
		Body:   req.Body,
	}
	if aerr := h.Store.AddTicketMessage(ctx, t, m); aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusCreated, Response: messageRsp(m)}, nil
}

func senderFromContext(ctx context.Context) string {
	if c := auth.ClaimsFromContext(ctx); c != nil {
		if c.FullName != "" {
			return c.FullName
		}
		return c.Email
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
