// Package dispatch delivers pending products to the Telegram channel.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/render"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/storage"
)

// defaultTemplate formats messages when no template is active in the store.
const defaultTemplate = "🔥 {name}\n💰 {price}\n🔗 {url}"

const (
	defaultBatchSize = 5
	defaultDelay     = 2 * time.Second

	// A stalled single delivery must not stall the whole run.
	sendTimeout = 30 * time.Second
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Result records the outcome of one delivery attempt.
type Result struct {
	ProductID string
	Name      string
	Err       string // empty on success
}

// Summary reports one dispatch pass over the pending batch.
type Summary struct {
	Attempted int
	Sent      int
	Failed    int
	Results   []Result
}

// Dispatcher sends pending products to the configured channel, newest
// first, bounded to a per-run batch and paced by an inter-message delay.
// The bot credential is read from settings on every run so configuration
// changes take effect without a restart.
type Dispatcher struct {
	store     storage.Storage
	log       *slog.Logger
	batchSize int
	delay     time.Duration

	newAPI func(token string) (telegramAPI, error)
	sleep  func(time.Duration)
	now    func() time.Time
}

// New creates a Dispatcher with production defaults.
func New(store storage.Storage, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		log:       log,
		batchSize: defaultBatchSize,
		delay:     defaultDelay,
		newAPI:    newBotAPI,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

func newBotAPI(token string) (telegramAPI, error) {
	client := &http.Client{Timeout: sendTimeout}
	return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
}

// Dispatch sends up to one batch of pending products. Missing, inactive or
// incomplete settings make it a no-op, not an error: a switched-off bot is
// a normal state. A failed delivery is recorded and the loop continues;
// sent_at is committed per product only after confirmed delivery.
func (d *Dispatcher) Dispatch(ctx context.Context) (Summary, error) {
	var sum Summary

	settings, err := d.store.GetSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		d.log.Warn("bot settings missing, skipping dispatch")
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Configured() {
		d.log.Warn("bot settings incomplete or inactive, skipping dispatch")
		return sum, nil
	}

	content, err := d.templateContent(ctx)
	if err != nil {
		return sum, err
	}

	pending, err := d.store.ListPendingProducts(ctx, d.batchSize)
	if err != nil {
		return sum, fmt.Errorf("list pending products: %w", err)
	}
	if len(pending) == 0 {
		d.log.Info("no pending products")
		return sum, nil
	}

	api, err := d.newAPI(settings.BotToken)
	if err != nil {
		return sum, fmt.Errorf("create bot api: %w", err)
	}

	for i, p := range pending {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}

		sum.Attempted++
		if err := d.send(api, settings.ChannelUsername, content, p); err != nil {
			sum.Failed++
			sum.Results = append(sum.Results, Result{ProductID: p.ID, Name: p.Name, Err: err.Error()})
			d.log.Error("send product", "product_id", p.ID, "name", p.Name, "error", err)
		} else {
			sum.Sent++
			sum.Results = append(sum.Results, Result{ProductID: p.ID, Name: p.Name})
			d.log.Info("sent product", "product_id", p.ID, "name", p.Name)
			if err := d.store.MarkProductSent(ctx, p.ID, d.now().UTC()); err != nil {
				d.log.Error("mark product sent", "product_id", p.ID, "error", err)
			}
		}

		// Rate limit dampener between deliveries.
		if i < len(pending)-1 {
			d.sleep(d.delay)
		}
	}

	return sum, nil
}

func (d *Dispatcher) templateContent(ctx context.Context) (string, error) {
	tpl, err := d.store.GetActiveTemplate(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return defaultTemplate, nil
	}
	if err != nil {
		return "", fmt.Errorf("load active template: %w", err)
	}
	return tpl.Content, nil
}

func (d *Dispatcher) send(api telegramAPI, channel, content string, p model.Product) error {
	text := render.Message(content, p)

	if p.ImageURL != "" {
		photo := tgbotapi.NewPhotoToChannel(channel, tgbotapi.FileURL(p.ImageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		_, err := api.Send(photo)
		return err
	}

	msg := tgbotapi.NewMessageToChannel(channel, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := api.Send(msg)
	return err
}
