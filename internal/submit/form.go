package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"swrfmods/internal/prefs"
)

const (
	// LinkPrefix is the only accepted shape of a submitted link.
	LinkPrefix = "https://steamcommunity.com/sharedfiles/filedetails/?id="
	Path       = "/api/submit"
	Cooldown   = 60 * time.Second
)

var (
	ErrInvalidLink  = errors.New("please enter a valid Steam Workshop link")
	ErrSubmitFailed = errors.New("submission failed, please try again")
	ErrCoolingDown  = errors.New("please wait before submitting again")
	ErrInFlight     = errors.New("a submission is already in progress")
)

// Status is the display state of the form.
type Status struct {
	Submitting  bool      `json:"submitting"`
	Submitted   bool      `json:"submitted"`
	CoolingDown bool      `json:"cooling_down"`
	Until       time.Time `json:"until,omitempty"`
}

// Form is the client side of the submission relay. Cooldowns survive a
// restart because the last successful submission time is persisted.
type Form struct {
	url      string
	storage  prefs.Storage
	client   *http.Client
	now      func() time.Time
	cooldown time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	submitting bool
	submitted  bool
	until      time.Time
	timer      *time.Timer
}

type Option func(*Form)

func WithClient(c *http.Client) Option { return func(f *Form) { f.client = c } }

func WithClock(now func() time.Time) Option { return func(f *Form) { f.now = now } }

func WithCooldown(d time.Duration) Option { return func(f *Form) { f.cooldown = d } }

func WithLogger(l *zap.Logger) Option { return func(f *Form) { f.logger = l } }

// NewForm opens the form against the site at base. A persisted submission
// younger than the cooldown puts the form straight into cooldown.
func NewForm(ctx context.Context, base string, storage prefs.Storage, opts ...Option) *Form {
	f := &Form{
		url:      strings.TrimRight(base, "/") + Path,
		storage:  storage,
		client:   &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
		cooldown: Cooldown,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("submit")

	if last, ok := prefs.LastSubmit(ctx, storage); ok {
		elapsed := f.now().Sub(last)
		if elapsed < 0 {
			elapsed = 0
		}
		if remaining := f.cooldown - elapsed; remaining > 0 {
			f.mu.Lock()
			f.startCooldownLocked(remaining)
			f.mu.Unlock()
		}
	}
	return f
}

// Validate checks the link locally.
func Validate(link string) error {
	if !strings.HasPrefix(strings.TrimSpace(link), LinkPrefix) {
		return ErrInvalidLink
	}
	return nil
}

// Submit validates link and posts it to the relay. Local rejections never
// touch the network.
func (f *Form) Submit(ctx context.Context, link string) error {
	link = strings.TrimSpace(link)
	if err := Validate(link); err != nil {
		return err
	}

	f.mu.Lock()
	switch {
	case f.submitting:
		f.mu.Unlock()
		return ErrInFlight
	case !f.until.IsZero():
		f.mu.Unlock()
		return ErrCoolingDown
	}
	f.submitting = true
	f.submitted = false
	f.mu.Unlock()

	err := f.post(ctx, link)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.logger.Warn("submission failed", zap.Error(err))
		return ErrSubmitFailed
	}

	f.submitted = true
	at := f.now()
	if err := prefs.SetLastSubmit(ctx, f.storage, at); err != nil {
		f.logger.Warn("persist last submit", zap.Error(err))
	}
	f.startCooldownLocked(f.cooldown)
	return nil
}

func (f *Form) post(ctx context.Context, link string) error {
	body, err := json.Marshal(map[string]string{"link": link})
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post submission: status %d", resp.StatusCode)
	}
	return nil
}

func (f *Form) startCooldownLocked(d time.Duration) {
	if f.timer != nil {
		f.timer.Stop()
	}
	f.until = f.now().Add(d)
	f.timer = time.AfterFunc(d, f.expire)
}

func (f *Form) expire() {
	f.mu.Lock()
	f.until = time.Time{}
	f.timer = nil
	f.mu.Unlock()
}

func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{
		Submitting:  f.submitting,
		Submitted:   f.submitted,
		CoolingDown: !f.until.IsZero(),
		Until:       f.until,
	}
}

// Close stops a pending cooldown timer and ends the cooldown it was
// counting down. The persisted submission time is kept.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.until = time.Time{}
}
