// Package notify pushes detection alerts to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/platewatch-data/platewatch/internal/monitoring"
	"github.com/platewatch-data/platewatch/internal/vision"
)

// Sender is the subset of tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier forwards detections from a pipeline subscription to a chat.
// Only statuses listed in Statuses are forwarded; by default that is
// valid plates only, so a noisy camera does not flood the chat.
type Notifier struct {
	bot    Sender
	chatID int64

	// Statuses selects which validation outcomes produce a message.
	Statuses []vision.ValidationStatus

	// MinInterval rate-limits repeat alerts for the same plate text.
	MinInterval time.Duration

	lastSent map[string]time.Time
}

func NewNotifier(bot Sender, chatID int64) *Notifier {
	return &Notifier{
		bot:         bot,
		chatID:      chatID,
		Statuses:    []vision.ValidationStatus{vision.StatusValid},
		MinInterval: time.Minute,
		lastSent:    make(map[string]time.Time),
	}
}

// NewBot connects to the Telegram API with the given token.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	return bot, nil
}

// Run consumes the detection channel until it closes or ctx is cancelled.
// Send failures are logged and do not stop the loop.
func (n *Notifier) Run(ctx context.Context, detections <-chan vision.DetectionResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-detections:
			if !ok {
				return
			}
			if !n.wants(result) {
				continue
			}
			msg := tgbotapi.NewMessage(n.chatID, FormatDetection(result))
			if _, err := n.bot.Send(msg); err != nil {
				monitoring.Logf("telegram send failed: %v", err)
			}
		}
	}
}

func (n *Notifier) wants(result vision.DetectionResult) bool {
	match := false
	for _, s := range n.Statuses {
		if result.Status == s {
			match = true
			break
		}
	}
	if !match {
		return false
	}
	if n.MinInterval > 0 && result.PlateText != "" {
		if last, ok := n.lastSent[result.PlateText]; ok && time.Since(last) < n.MinInterval {
			return false
		}
		n.lastSent[result.PlateText] = time.Now()
	}
	return true
}

// FormatDetection renders a one-message summary of a detection.
func FormatDetection(result vision.DetectionResult) string {
	var b strings.Builder
	switch result.Status {
	case vision.StatusValid:
		b.WriteString("Plate detected: ")
	case vision.StatusUncertain:
		b.WriteString("Possible plate: ")
	default:
		b.WriteString("Rejected read: ")
	}
	if result.PlateText == "" {
		b.WriteString("(unreadable)")
	} else {
		b.WriteString(result.PlateText)
	}
	fmt.Fprintf(&b, "\nConfidence: %.0f%%", result.Confidence*100)
	fmt.Fprintf(&b, "\nSource: %s", result.Source)
	fmt.Fprintf(&b, "\nTime: %s", result.FrameTime.UTC().Format(time.RFC3339))
	return b.String()
}
