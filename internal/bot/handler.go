package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/telebot.v3"

	"site-pulse/internal/chart"
	"site-pulse/internal/monitor"
	"site-pulse/internal/probe"
	"site-pulse/internal/series"
)

const (
	checkTimeout = 20 * time.Second
	dayUnique    = "day"
	maxDayRows   = 14
)

// Monitor is what the bot needs from the monitoring service.
type Monitor interface {
	Check(ctx context.Context) (probe.Result, error)
	Chart(day string) ([]byte, error)
	RecentChart(limit int) ([]byte, error)
	Days() ([]string, error)
	Summary(day string) (string, series.Summary, error)
}

// Settings configures the bot.
type Settings struct {
	Token  string
	ChatID int64
	// URL overrides the Bot API endpoint.
	URL     string
	Offline bool
}

// BotHandler holds the bot instance and the reply keyboard.
type BotHandler struct {
	Bot     *telebot.Bot
	monitor Monitor
	chatID  int64
	log     zerolog.Logger

	menu     *telebot.ReplyMarkup
	btnCheck telebot.Btn
	btnChart telebot.Btn
	btnDays  telebot.Btn
}

// NewBotHandler initializes the bot and registers its handlers.
func NewBotHandler(s Settings, m Monitor, log zerolog.Logger) (*BotHandler, error) {
	pref := telebot.Settings{
		Token:   s.Token,
		URL:     s.URL,
		Offline: s.Offline,
		Poller:  &telebot.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	h := &BotHandler{
		Bot:     b,
		monitor: m,
		chatID:  s.ChatID,
		log:     log.With().Str("component", "bot").Logger(),
		menu:    &telebot.ReplyMarkup{ResizeKeyboard: true},
	}
	h.btnCheck = h.menu.Text("🔍 Check")
	h.btnChart = h.menu.Text("📊 Chart")
	h.btnDays = h.menu.Text("📅 Days")
	h.menu.Reply(h.menu.Row(h.btnCheck, h.btnChart, h.btnDays))

	h.setupHandlers()
	return h, nil
}

func (h *BotHandler) setupHandlers() {
	h.Bot.Handle("/start", h.handleStart)

	h.Bot.Handle("/check", h.handleCheck)
	h.Bot.Handle(&h.btnCheck, h.handleCheck)

	h.Bot.Handle("/chart", h.handleChart)
	h.Bot.Handle("/history", h.handleChart)
	h.Bot.Handle(&h.btnChart, h.handleChart)

	h.Bot.Handle("/recent", h.handleRecent)
	h.Bot.Handle("/stats", h.handleStats)

	h.Bot.Handle("/days", h.handleDays)
	h.Bot.Handle(&h.btnDays, h.handleDays)
	h.Bot.Handle(&telebot.Btn{Unique: dayUnique}, h.handleDayCallback)
}

func (h *BotHandler) handleStart(c telebot.Context) error {
	name := "there"
	if u := c.Sender(); u != nil && u.FirstName != "" {
		name = u.FirstName
	}
	msg := fmt.Sprintf("👋 Hi %s! *Control panel:*\nUse the buttons below or /chart YYYY-MM-DD, /recent, /stats.", name)
	return c.Send(msg, h.menu, telebot.ModeMarkdown)
}

func (h *BotHandler) handleCheck(c telebot.Context) error {
	if err := c.Send("⏳ Measuring..."); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	res, err := h.monitor.Check(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("check could not be recorded")
	}
	return c.Send(res.Display, h.menu)
}

func (h *BotHandler) handleChart(c telebot.Context) error {
	day := firstArg(c.Args())
	if err := c.Send("🎨 Generating chart..."); err != nil {
		return err
	}
	img, err := h.monitor.Chart(day)
	return h.sendChart(c, img, err, chartCaption(day))
}

func (h *BotHandler) handleRecent(c telebot.Context) error {
	img, err := h.monitor.RecentChart(monitor.DefaultRecentLimit)
	return h.sendChart(c, img, err, fmt.Sprintf("Last %d checks", monitor.DefaultRecentLimit))
}

func (h *BotHandler) handleStats(c telebot.Context) error {
	day, sum, err := h.monitor.Summary(firstArg(c.Args()))
	if err != nil {
		return c.Send(errorReply(err), h.menu)
	}
	return c.Send(sum.Text(day), h.menu)
}

func (h *BotHandler) handleDays(c telebot.Context) error {
	days, err := h.monitor.Days()
	if err != nil {
		return c.Send(errorReply(err), h.menu)
	}
	if len(days) == 0 {
		return c.Send("📭 No data stored yet.", h.menu)
	}
	return c.Send("📅 Pick a day:", daysMarkup(days))
}

func (h *BotHandler) handleDayCallback(c telebot.Context) error {
	day := strings.TrimSpace(c.Data())
	_ = c.Respond(&telebot.CallbackResponse{Text: day})
	img, err := h.monitor.Chart(day)
	return h.sendChart(c, img, err, chartCaption(day))
}

func (h *BotHandler) sendChart(c telebot.Context, img []byte, err error, caption string) error {
	if err != nil {
		return c.Send(errorReply(err), h.menu)
	}
	photo := &telebot.Photo{
		File:    telebot.FromReader(bytes.NewReader(img)),
		Caption: caption,
	}
	return c.Send(photo, h.menu)
}

// Start blocks while polling for updates.
func (h *BotHandler) Start() {
	h.log.Info().Str("bot", h.Bot.Me.Username).Msg("bot polling started")
	h.Bot.Start()
}

func (h *BotHandler) Stop() {
	h.Bot.Stop()
}

// daysMarkup lays out the newest days first, two per row.
func daysMarkup(days []string) *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	var row []telebot.Btn
	for i := len(days) - 1; i >= 0 && len(rows)*2+len(row) < maxDayRows; i-- {
		row = append(row, m.Data(days[i], dayUnique, days[i]))
		if len(row) == 2 {
			rows = append(rows, m.Row(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, m.Row(row...))
	}
	m.Inline(rows...)
	return m
}

func errorReply(err error) string {
	switch {
	case errors.Is(err, chart.ErrNoData):
		return "📭 Not enough data yet."
	case monitor.IsClientError(err):
		return "❓ Use a day like 2024-03-01."
	default:
		return "💥 Something went wrong, try again later."
	}
}

func chartCaption(day string) string {
	if day == "" {
		return "Daily average latency, last 7 days"
	}
	return "Latency on " + day
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}
