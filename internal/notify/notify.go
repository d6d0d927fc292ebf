package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/servicecenter/api/internal/models"
)

// Store is the subset of the repository the dispatcher reads from
type Store interface {
	GetRequest(ctx context.Context, id int64) (*models.Request, error)
	GetCity(ctx context.Context, id int64) (*models.City, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListCityManagers(ctx context.Context, cityID int64) ([]models.User, error)
}

// EmailSender delivers an email notification
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// ChatSender delivers a chat notification
type ChatSender interface {
	Send(ctx context.Context, chatID, message string) error
}

// Queue accepts request IDs for background notification dispatch.
// Enqueue must never block the caller; delivery is at-most-once.
type Queue interface {
	Enqueue(requestID int64)
}

// Dispatcher resolves the managers of a request's city and fans one
// formatted message out over every configured channel. Channel failures
// are logged and dropped; nothing is retried and nothing reaches the
// original caller.
type Dispatcher struct {
	store  Store
	email  EmailSender
	chat   ChatSender
	logger *logrus.Logger
}

// NewDispatcher creates a dispatcher. chat may be nil when the Telegram
// channel is not configured.
func NewDispatcher(store Store, email EmailSender, chat ChatSender, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{store: store, email: email, chat: chat, logger: logger}
}

// Dispatch notifies all active managers of the request's city about the
// request. Missing request or city aborts silently.
func (d *Dispatcher) Dispatch(ctx context.Context, requestID int64) {
	req, err := d.store.GetRequest(ctx, requestID)
	if err != nil {
		d.logger.WithField("request_id", requestID).WithError(err).Debug("Request vanished before dispatch")
		return
	}

	city, err := d.store.GetCity(ctx, req.CityID)
	if err != nil {
		d.logger.WithField("city_id", req.CityID).WithError(err).Debug("City vanished before dispatch")
		return
	}

	managers, err := d.store.ListCityManagers(ctx, req.CityID)
	if err != nil {
		d.logger.WithField("city_id", req.CityID).WithError(err).Error("Failed to resolve city managers")
		return
	}
	if len(managers) == 0 {
		d.logger.WithField("city", city.Name).Debug("No active managers to notify")
		return
	}

	subject, body := d.buildMessage(ctx, req, city)

	var wg sync.WaitGroup
	for _, manager := range managers {
		if d.email != nil && manager.Email != "" {
			wg.Add(1)
			go func(m models.User) {
				defer wg.Done()
				if err := d.email.Send(ctx, m.Email, subject, body); err != nil {
					d.logger.WithFields(logrus.Fields{
						"channel":    "email",
						"manager":    m.Username,
						"request_id": req.ID,
						"error":      err,
					}).Warn("Notification delivery failed")
				}
			}(manager)
		}

		if d.chat != nil && manager.TelegramID != nil && *manager.TelegramID != "" {
			wg.Add(1)
			go func(m models.User) {
				defer wg.Done()
				text := fmt.Sprintf("<b>%s</b>\n\n%s", subject, body)
				if err := d.chat.Send(ctx, *m.TelegramID, text); err != nil {
					d.logger.WithFields(logrus.Fields{
						"channel":    "telegram",
						"manager":    m.Username,
						"request_id": req.ID,
						"error":      err,
					}).Warn("Notification delivery failed")
				}
			}(manager)
		}
	}
	wg.Wait()

	d.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"city":       city.Name,
		"managers":   len(managers),
	}).Info("Notification dispatch completed")
}

// buildMessage formats the notification subject and body. Referenced
// service/product names are included when they still resolve.
func (d *Dispatcher) buildMessage(ctx context.Context, req *models.Request, city *models.City) (subject, body string) {
	subject = fmt.Sprintf("New request #%d from %s", req.ID, city.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "A new request #%d has arrived\n\n", req.ID)
	fmt.Fprintf(&b, "Client: %s\n", req.Name)
	fmt.Fprintf(&b, "Phone: %s\n", req.Phone)
	if req.Email != nil && *req.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", *req.Email)
	}
	fmt.Fprintf(&b, "City: %s\n", city.Name)
	fmt.Fprintf(&b, "Message: %s\n", req.Message)

	if req.ServiceID != nil {
		if svc, err := d.store.GetService(ctx, *req.ServiceID); err == nil {
			fmt.Fprintf(&b, "Service: %s\n", svc.Name)
		}
	}
	if req.ProductID != nil {
		if p, err := d.store.GetProduct(ctx, *req.ProductID); err == nil {
			fmt.Fprintf(&b, "Product: %s\n", p.Name)
		}
	}

	return subject, b.String()
}
