package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/lukman83/adscout/internal/store"
	"github.com/lukman83/adscout/internal/throttle"
)

var (
	// ErrNeedsLogin means the session is not authenticated and an
	// interactive login is required.
	ErrNeedsLogin = errors.New("browser session needs interactive login")
	// ErrRenderTimeout means the ready selector did not appear in time.
	ErrRenderTimeout = errors.New("timed out waiting for page content")
	// ErrDisallowed means robots.txt forbids fetching the URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// UserAgent is the product token checked against robots.txt.
const UserAgent = "adscout"

// Options configures Open.
type Options struct {
	Headless      bool
	Bin           string // explicit browser binary
	ControlURL    string // connect to a running browser instead of launching
	ProxyURL      string
	ProfileDir    string // persistent user data directory
	CookiesFile   string
	HomeURL       string
	LoginSelector string // any match means logged in
	RenderTimeout time.Duration
	Robots        *throttle.RobotsChecker
	Logger        *slog.Logger
}

func (o *Options) defaults() {
	if o.LoginSelector == "" {
		o.LoginSelector = "#user-email, #user-logout"
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Session is one browser with a single page, owned by one caller at a time.
type Session struct {
	opts     Options
	logger   *slog.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	lastURL  string

	closeOnce sync.Once
}

// Open launches (or connects to) a browser and opens a desktop-sized page.
func Open(ctx context.Context, opts Options) (*Session, error) {
	opts.defaults()
	s := &Session{opts: opts, logger: opts.Logger.With("component", "browser")}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless).Logger(io.Discard)
		if opts.ProfileDir != "" {
			if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
				return nil, fmt.Errorf("create profile dir: %w", err)
			}
			l = l.UserDataDir(opts.ProfileDir)
		}
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.ProxyURL != "" {
			l = l.Proxy(opts.ProxyURL)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.page = page

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1920,
		Height: 1080,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return s, nil
}

// EnsureSession restores the saved cookie jar and checks the login state.
// It returns ErrNeedsLogin when there is no jar or the probe fails; it
// never prompts.
func (s *Session) EnsureSession(ctx context.Context) error {
	cookies, err := s.readCookies()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		s.logger.Info("no saved session", "cookies", s.opts.CookiesFile)
		return ErrNeedsLogin
	}

	if err := s.navigate(ctx, s.opts.HomeURL); err != nil {
		return err
	}
	if err := s.browser.SetCookies(proto.CookiesToParams(cookies)); err != nil {
		return fmt.Errorf("install cookies: %w", err)
	}
	if err := s.navigate(ctx, s.opts.HomeURL); err != nil {
		return err
	}

	ok, err := s.loggedIn(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("saved session is no longer logged in")
		return ErrNeedsLogin
	}
	s.logger.Info("session restored from cookies", "count", len(cookies))
	return nil
}

// Login opens the homepage, lets the user authenticate through waitForUser
// and saves the resulting cookie jar.
func (s *Session) Login(ctx context.Context, waitForUser func(context.Context) error) error {
	if err := s.navigate(ctx, s.opts.HomeURL); err != nil {
		return err
	}
	if waitForUser != nil {
		if err := waitForUser(ctx); err != nil {
			return err
		}
	}
	ok, err := s.loggedIn(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNeedsLogin
	}
	return s.SaveCookies()
}

// SaveCookies writes the browser's cookies to the jar file.
func (s *Session) SaveCookies() error {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}
	if err := store.WriteJSON(s.opts.CookiesFile, cookies); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	s.logger.Info("saved session cookies", "count", len(cookies), "path", s.opts.CookiesFile)
	return nil
}

// Render navigates to pageURL and returns the document HTML once
// readySelector is present. On timeout the page is sent back to the last
// successfully rendered URL and the error wraps ErrRenderTimeout.
func (s *Session) Render(ctx context.Context, pageURL, readySelector string) (string, error) {
	allowed, err := s.opts.Robots.IsAllowed(UserAgent, pageURL)
	if err != nil {
		return "", fmt.Errorf("check robots for %s: %w", pageURL, err)
	}
	if !allowed {
		return "", fmt.Errorf("%s: %w", pageURL, ErrDisallowed)
	}

	if err := s.navigate(ctx, pageURL); err != nil {
		return "", err
	}

	if readySelector != "" {
		if _, err := s.page.Context(ctx).Timeout(s.opts.RenderTimeout).Element(readySelector); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.goBack(ctx)
			if errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%s: %w", pageURL, ErrRenderTimeout)
			}
			return "", fmt.Errorf("wait for %q: %w", readySelector, err)
		}
	}

	doc, err := s.page.HTML()
	if err != nil {
		return "", fmt.Errorf("get page HTML: %w", err)
	}
	s.lastURL = pageURL
	return doc, nil
}

// Close releases the page, browser and launcher. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			_ = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
	})
	return nil
}

func (s *Session) navigate(ctx context.Context, pageURL string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(pageURL); err != nil {
		return fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	if err := page.Timeout(s.opts.RenderTimeout).WaitLoad(); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (s *Session) goBack(ctx context.Context) {
	if s.lastURL == "" {
		return
	}
	if err := s.page.Context(ctx).Navigate(s.lastURL); err != nil {
		s.logger.Debug("navigate back failed", "url", s.lastURL, "error", err)
	}
}

func (s *Session) loggedIn(ctx context.Context) (bool, error) {
	_, err := s.page.Context(ctx).Timeout(s.opts.RenderTimeout).Element(s.opts.LoginSelector)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

func (s *Session) readCookies() ([]*proto.NetworkCookie, error) {
	if s.opts.CookiesFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.opts.CookiesFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		s.logger.Warn("cookie jar is not valid JSON, ignoring", "error", err)
		return nil, nil
	}
	return cookies, nil
}
