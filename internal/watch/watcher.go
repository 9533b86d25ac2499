package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"camerasync/internal/config"
	"camerasync/internal/logging"
)

// Trigger is invoked once per matched storage event after the settle delay.
type Trigger func(ctx context.Context, device string) error

// Watcher matches block device uevents against the configured filesystem
// label or UUID and invokes the trigger for each match.
type Watcher struct {
	cfg     *config.Config
	logger  *slog.Logger
	trigger Trigger
	settle  time.Duration
	matcher netlink.Matcher

	mu      sync.Mutex
	running bool
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithSettle overrides the delay between the uevent and the trigger.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.settle = d
		}
	}
}

// New constructs a Watcher.
func New(cfg *config.Config, trigger Trigger, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if cfg == nil || trigger == nil {
		return nil, errors.New("watcher requires config and trigger")
	}
	w := &Watcher{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "watch"),
		trigger: trigger,
		settle:  time.Duration(cfg.Watch.SettleSeconds) * time.Second,
		matcher: Matcher(cfg.Watch),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Matcher builds the uevent rule for an added block device carrying a
// filesystem, restricted to the configured label and UUID when set.
func Matcher(cfg config.Watch) netlink.Matcher {
	action := "^add$"
	env := map[string]string{
		"SUBSYSTEM":   "^block$",
		"ID_FS_USAGE": "^filesystem$",
	}
	if label := strings.TrimSpace(cfg.FSLabel); label != "" {
		env["ID_FS_LABEL"] = "^" + regexp.QuoteMeta(label) + "$"
	}
	if id := strings.TrimSpace(cfg.FSUUID); id != "" {
		env["ID_FS_UUID"] = "(?i)^" + regexp.QuoteMeta(id) + "$"
	}
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{Action: &action, Env: env})
	return rules
}

// Run connects to the udev netlink socket and handles events until ctx is
// cancelled. Triggers run one at a time on the event loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("connect netlink socket: %w", err)
	}
	defer conn.Close()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, w.matcher)
	defer close(quit)

	w.logger.Info("watching for camera storage",
		logging.String("fs_label", w.cfg.Watch.FSLabel),
		logging.String("fs_uuid", w.cfg.Watch.FSUUID),
		logging.Duration("settle", w.settle),
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil
		case uevent := <-queue:
			w.handleEvent(ctx, uevent)
		case err := <-errs:
			w.logger.Warn("netlink monitor error", logging.Error(err))
		}
	}
}

// Running reports whether Run is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	if !w.matcher.Evaluate(uevent) {
		return
	}
	device := deviceName(uevent)
	logger := w.logger.With(logging.String("device", device))
	logger.Info("camera storage attached", logging.String("fs_label", uevent.Env["ID_FS_LABEL"]))

	if w.settle > 0 {
		timer := time.NewTimer(w.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	if err := w.trigger(ctx, device); err != nil {
		logger.Error("triggered run failed", logging.ErrorAttrs(err)...)
		return
	}
	logger.Info("triggered run finished")
}

func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
