// Package telegram adapts the transport-neutral conversation machinery to
// Telegram: commands and callbacks come in, views go out as messages with
// inline keyboards. All per-user work runs under the session manager's lock.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tb "gopkg.in/telebot.v3"

	"github.com/fadeni/school-diary-bot/internal/auth"
	botctx "github.com/fadeni/school-diary-bot/internal/context"
	"github.com/fadeni/school-diary-bot/internal/nav"
	"github.com/fadeni/school-diary-bot/internal/router"
	"github.com/fadeni/school-diary-bot/internal/session"
	"github.com/fadeni/school-diary-bot/internal/view"
)

const (
	commandStart    = "/start"
	commandLogin    = "/login"
	commandCancel   = "/cancel"
	commandSchedule = "/schedule"
	commandMarks    = "/marks"

	// remote diary calls happen inside handlers; the budget covers the
	// slowest of them
	processTimeout = 30 * time.Second
)

type (
	Dependencies struct {
		Sessions *session.Manager
		Auth     *auth.Flow
		Nav      *nav.Controller
		Router   *router.Router
		Logger   *slog.Logger
	}

	Bot struct {
		bot      *tb.Bot
		sessions *session.Manager
		auth     *auth.Flow
		nav      *nav.Controller
		router   *router.Router

		middlewares []tb.MiddlewareFunc

		log *slog.Logger
	}
)

func NewBot(token string, deps Dependencies, middlewares ...tb.MiddlewareFunc) (*Bot, error) {
	b, err := tb.NewBot(tb.Settings{
		Token: token,
		Poller: &tb.LongPoller{
			Timeout: 1 * time.Minute,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Bot{
		bot:         b,
		sessions:    deps.Sessions,
		auth:        deps.Auth,
		nav:         deps.Nav,
		router:      deps.Router,
		middlewares: middlewares,
		log:         deps.Logger,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	b.bot.Handle(commandStart, b.HandleStart, b.middlewares...)
	b.bot.Handle(commandLogin, b.HandleLogin, b.middlewares...)
	b.bot.Handle(commandCancel, b.HandleCancel, b.middlewares...)
	b.bot.Handle(commandSchedule, b.HandleSchedule, b.middlewares...)
	b.bot.Handle(commandMarks, b.HandleMarks, b.middlewares...)
	b.bot.Handle(tb.OnText, b.HandleText, b.middlewares...)
	b.bot.Handle(tb.OnCallback, b.HandleCallback, b.middlewares...)

	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()

	b.bot.Start()
}

func (b *Bot) HandleStart(c tb.Context) error {
	ctx, cancel := b.processCtx(c)
	defer cancel()

	name := c.Sender().FirstName
	var v view.View
	err := b.sessions.Do(c.Sender().ID, func(s *session.Session) error {
		if b.auth.Authenticated(ctx, s) {
			v = view.View{
				Text: fmt.Sprintf("Hello, %s! You are logged in. Pick an action:", name),
				Keyboard: [][]view.Button{
					{{Label: "View schedule", Token: nav.ViewScheduleToken()}},
					{{Label: "Delete my data", Token: nav.DeleteDataToken()}},
				},
			}
		} else {
			v = view.Text(fmt.Sprintf("Hello, %s! Use /login to get started.", name))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return b.send(c, v)
}

func (b *Bot) HandleLogin(c tb.Context) error {
	ctx, cancel := b.processCtx(c)
	defer cancel()

	return b.withSession(c, func(s *session.Session) view.View {
		return b.auth.Start(ctx, s)
	})
}

func (b *Bot) HandleCancel(c tb.Context) error {
	return b.withSession(c, func(s *session.Session) view.View {
		return b.auth.Cancel(s)
	})
}

func (b *Bot) HandleSchedule(c tb.Context) error {
	ctx, cancel := b.processCtx(c)
	defer cancel()

	return b.withSession(c, func(s *session.Session) view.View {
		return b.nav.OpenSchedule(ctx, s)
	})
}

func (b *Bot) HandleMarks(c tb.Context) error {
	ctx, cancel := b.processCtx(c)
	defer cancel()

	return b.withSession(c, func(s *session.Session) view.View {
		return b.nav.Marks(ctx, s)
	})
}

func (b *Bot) HandleText(c tb.Context) error {
	ctx, cancel := b.processCtx(c)
	defer cancel()

	var v view.View
	var handled bool
	err := b.sessions.Do(c.Sender().ID, func(s *session.Session) error {
		v, handled = b.router.Text(ctx, s, c.Text())
		return nil
	})
	if err != nil {
		return err
	}
	if !handled {
		b.log.DebugContext(ctx, "dropping free text", "user_id", c.Sender().ID)
		return nil
	}

	return b.send(c, v)
}

func (b *Bot) HandleCallback(c tb.Context) error {
	ctx, cancel := b.processCtx(c)
	defer cancel()

	var v view.View
	var handled bool
	err := b.sessions.Do(c.Sender().ID, func(s *session.Session) error {
		v, handled = b.router.Callback(ctx, s, c.Callback().Data)
		return nil
	})
	if err != nil {
		return err
	}

	if !handled {
		// inert or unrecognized: acknowledge the tap, change nothing
		return c.Respond()
	}
	if err := c.Respond(); err != nil {
		b.log.WarnContext(ctx, "failed to answer callback", "error", err)
	}

	return b.edit(c, v)
}

func (b *Bot) withSession(c tb.Context, fn func(s *session.Session) view.View) error {
	var v view.View
	err := b.sessions.Do(c.Sender().ID, func(s *session.Session) error {
		v = fn(s)
		return nil
	})
	if err != nil {
		return err
	}
	return b.send(c, v)
}

func (b *Bot) send(c tb.Context, v view.View) error {
	if v.Text == "" {
		return nil
	}
	if len(v.Keyboard) == 0 {
		return c.Send(v.Text)
	}
	return c.Send(v.Text, keyboardMarkup(v))
}

// edit rewrites the message that carried the tapped keyboard, falling back
// to a fresh message when the original is gone or unchanged.
func (b *Bot) edit(c tb.Context, v view.View) error {
	if v.Text == "" {
		return nil
	}

	var err error
	if len(v.Keyboard) == 0 {
		err = c.Edit(v.Text)
	} else {
		err = c.Edit(v.Text, keyboardMarkup(v))
	}
	if err != nil {
		return b.send(c, v)
	}
	return nil
}

func keyboardMarkup(v view.View) *tb.ReplyMarkup {
	keyboard := make([][]tb.InlineButton, 0, len(v.Keyboard))
	for _, row := range v.Keyboard {
		buttons := make([]tb.InlineButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tb.InlineButton{Text: btn.Label, Data: btn.Token})
		}
		keyboard = append(keyboard, buttons)
	}
	return &tb.ReplyMarkup{InlineKeyboard: keyboard}
}

func (b *Bot) processCtx(c tb.Context) (context.Context, context.CancelFunc) {
	ctx := botctx.WithUserID(context.Background(), c.Sender().ID)
	return context.WithTimeout(ctx, processTimeout)
}
