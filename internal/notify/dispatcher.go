package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/inventory"
	"github.com/bhavik262/pizza-delivery/internal/order"
	"github.com/bhavik262/pizza-delivery/internal/user"
)

const defaultSendTimeout = 30 * time.Second

// UserLookup resolves the recipient of an order email.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Dispatcher renders templates and hands messages to a Sender on a
// background goroutine. It implements user.Mailer, order.Notifier and
// inventory.Alerter.
type Dispatcher struct {
	sender      Sender
	users       UserLookup
	adminEmail  string
	frontendURL string
	timeout     time.Duration

	wg sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func NewDispatcher(sender Sender, users UserLookup, adminEmail, frontendURL string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		users:       users,
		adminEmail:  adminEmail,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		timeout:     defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetUsers wires the recipient lookup after construction, breaking the
// cycle between the user service and its mailer.
func (d *Dispatcher) SetUsers(users UserLookup) {
	d.users = users
}

// Wait blocks until every queued email has been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) link(path string) string {
	return d.frontendURL + path
}

// dispatch runs build and send detached from the request context so a
// finished request does not cancel delivery.
func (d *Dispatcher) dispatch(ctx context.Context, kind string, build func(ctx context.Context) (Message, error)) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		m, err := build(ctx)
		if err != nil {
			log.Error().Err(err).Str("email", kind).Msg("notify: failed to prepare email")
			return
		}
		if err := d.sender.Send(ctx, m); err != nil {
			log.Error().Err(err).Str("email", kind).Str("to", m.To).Msg("notify: failed to send email")
			return
		}
		log.Debug().Str("email", kind).Str("to", m.To).Msg("notify: email sent")
	}()
}

func (d *Dispatcher) SendVerification(ctx context.Context, u *user.User, token string) {
	name, to := u.Name, u.Email
	d.dispatch(ctx, "verification", func(context.Context) (Message, error) {
		html, err := render(tmplVerification, map[string]any{
			"Name": name,
			"Link": d.link("/verify-email/" + token),
		})
		if err != nil {
			return Message{}, err
		}
		return Message{To: to, Subject: "Verify your email address", HTML: html}, nil
	})
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, u *user.User, token string) {
	name, to := u.Name, u.Email
	d.dispatch(ctx, "password-reset", func(context.Context) (Message, error) {
		html, err := render(tmplPasswordReset, map[string]any{
			"Name": name,
			"Link": d.link("/reset-password/" + token),
		})
		if err != nil {
			return Message{}, err
		}
		return Message{To: to, Subject: "Reset your password", HTML: html}, nil
	})
}

func (d *Dispatcher) recipient(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	if d.users == nil {
		return nil, fmt.Errorf("notify: no user lookup configured")
	}
	u, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to load recipient %s: %w", userID, err)
	}
	return u, nil
}

func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, o *order.Order) {
	snapshot := *o
	d.dispatch(ctx, "order-confirmation", func(ctx context.Context) (Message, error) {
		u, err := d.recipient(ctx, snapshot.UserID)
		if err != nil {
			return Message{}, err
		}
		html, err := render(tmplOrderConfirmation, map[string]any{
			"Name":  u.Name,
			"Order": &snapshot,
			"Link":  d.link("/orders/" + snapshot.ID.String()),
		})
		if err != nil {
			return Message{}, err
		}
		return Message{
			To:      u.Email,
			Subject: fmt.Sprintf("Order confirmed - %s", snapshot.OrderNumber),
			HTML:    html,
		}, nil
	})
}

func (d *Dispatcher) SendOrderStatusUpdate(ctx context.Context, o *order.Order) {
	snapshot := *o
	d.dispatch(ctx, "order-status-update", func(ctx context.Context) (Message, error) {
		u, err := d.recipient(ctx, snapshot.UserID)
		if err != nil {
			return Message{}, err
		}
		html, err := render(tmplOrderStatusUpdate, map[string]any{
			"Name":    u.Name,
			"Order":   &snapshot,
			"Message": order.StatusMessage(snapshot.OrderStatus),
			"Link":    d.link("/orders/" + snapshot.ID.String()),
		})
		if err != nil {
			return Message{}, err
		}
		return Message{
			To:      u.Email,
			Subject: fmt.Sprintf("Order %s is %s", snapshot.OrderNumber, snapshot.OrderStatus),
			HTML:    html,
		}, nil
	})
}

type stockRow struct {
	Name          string
	Category      inventory.Category
	CurrentStock  float64
	MinStockLevel float64
	Unit          string
	Status        inventory.Status
}

func (d *Dispatcher) SendLowStockAlert(ctx context.Context, items []inventory.Item) {
	if d.adminEmail == "" || len(items) == 0 {
		return
	}
	rows := make([]stockRow, 0, len(items))
	for i := range items {
		rows = append(rows, stockRow{
			Name:          items[i].Name,
			Category:      items[i].Category,
			CurrentStock:  items[i].CurrentStock,
			MinStockLevel: items[i].MinStockLevel,
			Unit:          items[i].Unit,
			Status:        items[i].Status(),
		})
	}
	to := d.adminEmail
	d.dispatch(ctx, "low-stock-alert", func(context.Context) (Message, error) {
		html, err := render(tmplLowStockAlert, map[string]any{
			"Items": rows,
			"Link":  d.link("/admin/inventory"),
		})
		if err != nil {
			return Message{}, err
		}
		return Message{
			To:      to,
			Subject: fmt.Sprintf("Low stock alert: %d item(s)", len(rows)),
			HTML:    html,
		}, nil
	})
}
