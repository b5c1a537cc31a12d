// Package whatsapp delivers offers through WhatsApp Web by driving a real
// browser. The session lives in a persistent user data dir so the QR-code
// pairing survives restarts; first run requires a human to scan the code.
package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"zapfinder/internal/campaign"
	"zapfinder/internal/offer"
)

const (
	webURL      = "https://web.whatsapp.com"
	channelName = "whatsapp"

	// Selectors track the WhatsApp Web DOM as of the current release. They
	// break whenever Meta reshuffles the frontend, hence the redundancy.
	searchBoxSelector  = `div[contenteditable="true"][data-tab="3"]`
	composerSelector   = `div[contenteditable="true"][data-tab="10"]`
	sendIconSelector   = `span[data-icon="send"]`
	fileInputSelector  = `input[type="file"]`
	chatTitleSelector  = `span[title=%q]`
	defaultNavTimeout  = 75 * time.Second
	defaultReadyPoll   = 2 * time.Second
	defaultShortWait   = 5 * time.Second
	defaultSendDelay   = 2 * time.Second
	elementProbePeriod = time.Second
)

// readySelectors are probed in order; any one of them present means the chat
// UI finished loading and the session is authenticated.
var readySelectors = []string{
	`div[data-testid="chat-list"]`,
	`div[role="textbox"]`,
	`div[contenteditable="true"]`,
}

// Config controls the browser session.
type Config struct {
	// UserDataDir persists cookies and the pairing between runs.
	UserDataDir string
	Headless    bool
	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration
	// ReadyPollInterval is how often AwaitReady re-probes the DOM.
	ReadyPollInterval time.Duration
	// SendDelay is the pause after each delivery, WhatsApp rate-limits
	// accounts that blast messages back to back.
	SendDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavTimeout
	}
	if c.ReadyPollInterval <= 0 {
		c.ReadyPollInterval = defaultReadyPoll
	}
	if c.SendDelay <= 0 {
		c.SendDelay = defaultSendDelay
	}
}

// Channel drives one WhatsApp Web session. Not safe for concurrent use; the
// campaign runner serializes all calls.
type Channel struct {
	cfg  Config
	log  *zap.Logger
	http *http.Client

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// New builds a channel; the browser only starts on Connect.
func New(cfg Config, log *zap.Logger) *Channel {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{
		cfg:  cfg,
		log:  log,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name identifies the channel in delivery history records.
func (c *Channel) Name() string { return channelName }

// Connect launches the browser and opens WhatsApp Web.
func (c *Channel) Connect(ctx context.Context) error {
	l := launcher.New().
		Headless(c.cfg.Headless).
		Set(flags.Flag("disable-notifications")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		NoSandbox(true)
	if c.cfg.UserDataDir != "" {
		if err := os.MkdirAll(c.cfg.UserDataDir, 0o755); err != nil {
			return &campaign.ConnectionError{Channel: channelName, Err: fmt.Errorf("session dir: %w", err)}
		}
		l = l.UserDataDir(c.cfg.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return &campaign.ConnectionError{Channel: channelName, Err: fmt.Errorf("launch chrome: %w", err)}
	}
	c.launcher = l

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		c.cleanup()
		return &campaign.ConnectionError{Channel: channelName, Err: fmt.Errorf("connect to chrome: %w", err)}
	}
	c.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: webURL})
	if err != nil {
		c.cleanup()
		return &campaign.ConnectionError{Channel: channelName, Err: fmt.Errorf("open %s: %w", webURL, err)}
	}
	c.page = page

	if err := page.Timeout(c.cfg.NavigationTimeout).WaitLoad(); err != nil {
		c.log.Warn("page load wait ended early", zap.Error(err))
	}
	c.log.Info("whatsapp web opened", zap.Bool("headless", c.cfg.Headless))
	return nil
}

// AwaitReady polls for the chat UI until it appears or the timeout expires.
// A fresh session sits on the QR code screen until someone scans it, so the
// timeout has to cover human reaction time.
func (c *Channel) AwaitReady(ctx context.Context, timeout time.Duration) error {
	if c.page == nil {
		return &campaign.ConnectionError{Channel: channelName, Err: fmt.Errorf("not connected")}
	}
	deadline := time.Now().Add(timeout)
	for {
		for _, sel := range readySelectors {
			if c.probe(sel) {
				c.log.Info("whatsapp session ready", zap.String("selector", sel))
				return nil
			}
		}
		if time.Now().After(deadline) {
			return &campaign.ReadinessTimeout{Channel: channelName, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return &campaign.ConnectionError{Channel: channelName, Err: ctx.Err()}
		case <-time.After(c.cfg.ReadyPollInterval):
		}
	}
}

// ResolveDestination opens the chat with the named group or contact. It tries
// a direct click on the chat list first and falls back to the search box.
func (c *Channel) ResolveDestination(ctx context.Context, name string) error {
	if c.page == nil {
		return &campaign.ConnectionError{Channel: channelName, Err: fmt.Errorf("not connected")}
	}
	titleSel := fmt.Sprintf(chatTitleSelector, name)

	if el, err := c.page.Context(ctx).Timeout(defaultShortWait).Element(titleSel); err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			c.log.Info("destination opened from chat list", zap.String("destination", name))
			return c.awaitComposer(ctx, name)
		}
	}

	// Not in the visible chat list; search for it.
	box, err := c.page.Context(ctx).Timeout(defaultShortWait).Element(searchBoxSelector)
	if err != nil {
		return &campaign.DestinationNotFound{Name: name, Err: fmt.Errorf("search box: %w", err)}
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &campaign.DestinationNotFound{Name: name, Err: fmt.Errorf("focus search: %w", err)}
	}
	if err := box.Input(name); err != nil {
		return &campaign.DestinationNotFound{Name: name, Err: fmt.Errorf("type search: %w", err)}
	}

	el, err := c.page.Context(ctx).Timeout(2 * defaultShortWait).Element(titleSel)
	if err != nil {
		return &campaign.DestinationNotFound{Name: name, Err: fmt.Errorf("no search result: %w", err)}
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &campaign.DestinationNotFound{Name: name, Err: fmt.Errorf("open result: %w", err)}
	}
	c.log.Info("destination opened via search", zap.String("destination", name))
	return c.awaitComposer(ctx, name)
}

func (c *Channel) awaitComposer(ctx context.Context, name string) error {
	if _, err := c.page.Context(ctx).Timeout(2 * defaultShortWait).Element(composerSelector); err != nil {
		return &campaign.DestinationNotFound{Name: name, Err: fmt.Errorf("composer never appeared: %w", err)}
	}
	return nil
}

// Deliver sends one offer to the currently open chat. It prefers the image
// with the message as caption and falls back to a text-only message when the
// image cannot be fetched or attached.
func (c *Channel) Deliver(ctx context.Context, o offer.Offer) error {
	if c.page == nil {
		return &campaign.DeliveryError{OfferTitle: o.Title, Err: fmt.Errorf("not connected")}
	}
	msg := messageFor(o)

	sent := false
	if o.ImageURL != "" {
		if err := c.sendWithImage(ctx, o.ImageURL, msg); err != nil {
			c.log.Warn("image send failed, falling back to text",
				zap.String("offer", o.Title), zap.Error(err))
		} else {
			sent = true
		}
	}
	if !sent {
		if err := c.sendText(ctx, msg); err != nil {
			return &campaign.DeliveryError{OfferTitle: o.Title, Err: err}
		}
	}

	c.log.Info("offer delivered", zap.String("offer", o.Title), zap.Bool("with_image", sent))

	select {
	case <-ctx.Done():
		return &campaign.DeliveryError{OfferTitle: o.Title, Err: ctx.Err()}
	case <-time.After(c.cfg.SendDelay):
	}
	return nil
}

func (c *Channel) sendWithImage(ctx context.Context, imageURL, caption string) error {
	path, err := downloadImage(ctx, c.http, imageURL)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	fileInput, err := c.page.Context(ctx).Timeout(defaultShortWait).Element(fileInputSelector)
	if err != nil {
		return fmt.Errorf("file input: %w", err)
	}
	if err := fileInput.SetFiles([]string{path}); err != nil {
		return fmt.Errorf("attach image: %w", err)
	}

	// The caption box reuses the composer markup inside the preview dialog.
	box, err := c.page.Context(ctx).Timeout(2 * defaultShortWait).Element(composerSelector)
	if err != nil {
		return fmt.Errorf("caption box: %w", err)
	}
	if err := c.typeMultiline(box, caption); err != nil {
		return fmt.Errorf("type caption: %w", err)
	}
	return c.pressSend(ctx)
}

func (c *Channel) sendText(ctx context.Context, msg string) error {
	box, err := c.page.Context(ctx).Timeout(defaultShortWait).Element(composerSelector)
	if err != nil {
		return fmt.Errorf("composer: %w", err)
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("focus composer: %w", err)
	}
	if err := c.typeMultiline(box, msg); err != nil {
		return fmt.Errorf("type message: %w", err)
	}
	return c.pressSend(ctx)
}

// typeMultiline enters text line by line, inserting Shift+Enter between lines
// so WhatsApp treats them as a single message instead of sending early.
func (c *Channel) typeMultiline(el *rod.Element, text string) error {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			if err := el.Input(line); err != nil {
				return err
			}
		}
		if i < len(lines)-1 {
			kb := c.page.Keyboard
			if err := kb.Press(input.ShiftLeft); err != nil {
				return err
			}
			if err := kb.Type(input.Enter); err != nil {
				return err
			}
			if err := kb.Release(input.ShiftLeft); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Channel) pressSend(ctx context.Context) error {
	if el, err := c.page.Context(ctx).Timeout(defaultShortWait).Element(sendIconSelector); err == nil {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return nil
		}
	}
	// Send button missing or unclickable; Enter does the same thing.
	return c.page.Keyboard.Type(input.Enter)
}

// probe checks for a selector without waiting on it.
func (c *Channel) probe(sel string) bool {
	_, err := c.page.Timeout(elementProbePeriod).Element(sel)
	return err == nil
}

// Close shuts the browser down. Idempotent and safe after a failed Connect.
func (c *Channel) Close() error {
	c.cleanup()
	return nil
}

func (c *Channel) cleanup() {
	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	if c.browser != nil {
		_ = c.browser.Close()
		c.browser = nil
	}
	if c.launcher != nil {
		// Kill, not Cleanup: Cleanup would delete the user data dir and
		// with it the QR pairing.
		c.launcher.Kill()
		c.launcher = nil
	}
}

// messageFor renders the offer in the format followers expect in the group.
func messageFor(o offer.Offer) string {
	return fmt.Sprintf("*%s*\n\n🔥 Por: R$ %s\n\n🛒 Compre aqui: %s",
		o.Title, o.PriceLabel(), o.AffiliateLink)
}
