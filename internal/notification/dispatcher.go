package notification

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
)

// Audience names resolved through the notification config.
const (
	AudienceTeamLeads = "team_leads"
	AudienceAdmins    = "admins"
	AudienceInventory = "inventory"
)

// RequestReader looks up the request behind a request event.
type RequestReader interface {
	GetByID(ctx context.Context, id int64) (*domain.EquipmentRequest, error)
}

type route struct {
	audiences []string
	requester bool
	subject   string
}

var requestRoutes = map[domain.Action]route{
	domain.ActionCreated:          {audiences: []string{AudienceTeamLeads}, subject: "New equipment request #%d"},
	domain.ActionTeamLeadApproved: {audiences: []string{AudienceAdmins}, subject: "Request #%d awaits admin approval"},
	domain.ActionTeamLeadRejected: {requester: true, subject: "Request #%d was rejected by your team lead"},
	domain.ActionAdminApproved:    {audiences: []string{AudienceInventory}, requester: true, subject: "Request #%d was approved"},
	domain.ActionAdminRejected:    {requester: true, subject: "Request #%d was rejected"},
	domain.ActionStatusChanged:    {requester: true, subject: "Request #%d status update"},
	domain.ActionAssigned:         {requester: true, subject: "Equipment assigned for request #%d"},
	domain.ActionUnassigned:       {requester: true, subject: "Equipment returned for request #%d"},
}

var equipmentRoutes = map[domain.Action]route{
	domain.ActionStatusChanged: {audiences: []string{AudienceInventory}, subject: "Equipment #%d status update"},
}

// Dispatcher turns transition events into emails. Delivery problems are
// logged and never fed back into the workflow.
type Dispatcher struct {
	sender     EmailSender
	requests   RequestReader
	audiences  map[string][]string
	userEmails map[int64]string
}

func NewDispatcher(sender EmailSender, requests RequestReader, audiences map[string][]string, userEmails map[int64]string) *Dispatcher {
	return &Dispatcher{sender: sender, requests: requests, audiences: audiences, userEmails: userEmails}
}

// Dispatch sends the email for one event. Events nobody subscribes to are
// skipped without error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.TransitionEvent) error {
	routes := requestRoutes
	if ev.SubjectKind == domain.SubjectEquipment {
		routes = equipmentRoutes
	}
	r, ok := routes[ev.Action]
	if !ok {
		return nil
	}

	var to []string
	for _, a := range r.audiences {
		to = append(to, d.audiences[a]...)
	}
	if r.requester {
		req, err := d.requests.GetByID(ctx, ev.SubjectID)
		if err != nil {
			return fmt.Errorf("load request %d: %w", ev.SubjectID, err)
		}
		if addr, ok := d.userEmails[req.RequesterID]; ok {
			to = append(to, addr)
		} else {
			logger.Debug("No mailbox for requester", "requesterID", req.RequesterID)
		}
	}
	slices.Sort(to)
	to = slices.Compact(to)
	if len(to) == 0 {
		return nil
	}

	return d.sender.Send(ctx, Email{
		To:        to,
		Subject:   fmt.Sprintf(r.subject, ev.SubjectID),
		PlainText: body(ev),
	})
}

func body(ev domain.TransitionEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d: %s\n", ev.SubjectKind, ev.SubjectID, strings.ReplaceAll(string(ev.Action), "_", " "))
	if ev.OldStatus != "" || ev.NewStatus != "" {
		fmt.Fprintf(&b, "Status: %s -> %s\n", orDash(ev.OldStatus), orDash(ev.NewStatus))
	}
	fmt.Fprintf(&b, "By user %d at %s\n", ev.ActorID, ev.Timestamp.Format("2006-01-02 15:04 MST"))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Drain reads up to batch entries from the stream, dispatches each and acks
// all of them, failed or not.
func (d *Dispatcher) Drain(ctx context.Context, c *StreamConsumer, batch int64) (int, error) {
	msgs, err := c.Read(ctx, batch)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if err := d.Dispatch(ctx, m.Event); err != nil {
			logger.Error("Failed to dispatch notification",
				"eventID", m.Event.ID,
				"action", m.Event.Action,
				"subjectID", m.Event.SubjectID,
				"error", err)
		}
		ids = append(ids, m.ID)
	}
	if err := c.Ack(ctx, ids...); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
