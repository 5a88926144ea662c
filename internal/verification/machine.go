package verification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/catalog-crawler/internal/humanize"
)

// Driver performs the page actions a login needs.
type Driver interface {
	URL() string
	Goto(ctx context.Context, url string) error
	// Type focuses the first visible field matching selectors and types text one
	// character at a time, asking delay for every key.
	Type(ctx context.Context, selectors []string, text string, delay func() time.Duration) error
	// Submit clicks the first visible button matching selectors, or presses Enter
	// in the last typed field.
	Submit(ctx context.Context, selectors []string) error
	// Settle waits for the page to calm down. Failures are advisory.
	Settle(ctx context.Context)
}

// Prompter asks an operator to clear a verification wall by hand. Returning false
// means the operator chose to skip.
type Prompter interface {
	Confirm(ctx context.Context, reason string) (bool, error)
}

// Clock abstracts sleeping so polls can be tested without real time.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error { return humanize.Sleep(ctx, d) }

type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) empty() bool {
	return c.Email == "" || c.Password == ""
}

type Options struct {
	Rules       Rules
	Credentials Credentials
	// Manual enables the operator hook. It is ignored for headless sessions.
	Manual   bool
	Headless bool
	Prompter Prompter
	Clock    Clock
	Human    *humanize.Humanizer

	PollInterval time.Duration
	PollWindow   time.Duration

	// OnAuthenticated runs right after a login succeeds, usually a cookie checkpoint.
	OnAuthenticated func() error
	// OnBlock receives every block classification.
	OnBlock func(BlockKind)
	Logger  *slog.Logger
}

// Machine is the per-session login and verification state. It is used by the single
// goroutine that owns the session; State may be read from anywhere.
type Machine struct {
	opts   Options
	driver Driver
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	attempts int
}

func New(driver Driver, opts Options) *Machine {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Human == nil {
		opts.Human = humanize.New(humanize.DefaultConfig(), opts.Logger)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.PollWindow <= 0 {
		opts.PollWindow = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		opts:   opts,
		driver: driver,
		logger: logger.With("component", "verification"),
		state:  Anonymous,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *Machine) set(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		m.logger.Info("verification state changed", "from", prev.String(), "to", s.String())
	}
}

// Check inspects the page reached by the last navigation and advances the machine.
// A nil error means the page may be extracted.
func (m *Machine) Check(ctx context.Context, p Page) (State, error) {
	state := m.State()
	if state == Failed {
		return Failed, ErrVerificationFailed
	}

	wall := m.opts.Rules.Detect(p)
	if wall != NoWall {
		kind := Classify(p)
		m.logger.Warn("verification wall detected", "url", p.URL, "wall", wallName(wall), "block", string(kind))
		if m.opts.OnBlock != nil {
			m.opts.OnBlock(kind)
		}
	}

	switch wall {
	case NoWall:
		if state == LoginAttempted || state == VerificationPending {
			return m.authenticate()
		}
		return state, nil
	case VerifyWall:
		m.set(VerificationPending)
		return m.awaitVerification(ctx)
	default:
		return m.login(ctx)
	}
}

func (m *Machine) login(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.attempts >= MaxLoginAttempts {
		m.mu.Unlock()
		m.logger.Warn("login attempt limit reached", "attempts", MaxLoginAttempts)
		m.set(Failed)
		return Failed, fmt.Errorf("%w: %d login attempts exhausted", ErrVerificationFailed, MaxLoginAttempts)
	}
	if m.opts.Credentials.empty() {
		state := m.state
		m.mu.Unlock()
		return state, ErrLoginRequired
	}
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	m.set(LoginAttempted)
	m.logger.Info("attempting login", "attempt", attempt)

	if err := m.submit(ctx); err != nil {
		if ctx.Err() != nil {
			return LoginAttempted, ctx.Err()
		}
		m.logger.Warn("login submission failed", "attempt", attempt, "error", err)
		return LoginAttempted, fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}

	url := m.driver.URL()
	rules := m.opts.Rules
	switch {
	case rules.onVerifyPath(url):
		m.set(VerificationPending)
		return m.awaitVerification(ctx)
	case rules.onLoginPath(url):
		return LoginAttempted, ErrLoginRejected
	default:
		return m.authenticate()
	}
}

func (m *Machine) submit(ctx context.Context) error {
	rules := m.opts.Rules
	human := m.opts.Human

	if rules.LoginURL != "" && !rules.onLoginPath(m.driver.URL()) {
		if err := m.driver.Goto(ctx, rules.LoginURL); err != nil {
			return fmt.Errorf("failed to open login page: %w", err)
		}
	}
	if err := m.opts.Clock.Sleep(ctx, human.Duration(2*time.Second, 4*time.Second)); err != nil {
		return err
	}
	if err := m.driver.Type(ctx, rules.EmailSelectors, m.opts.Credentials.Email, human.KeyDelay); err != nil {
		return fmt.Errorf("failed to type email: %w", err)
	}
	if err := m.opts.Clock.Sleep(ctx, human.Duration(500*time.Millisecond, time.Second)); err != nil {
		return err
	}
	if err := m.driver.Type(ctx, rules.PasswordSelectors, m.opts.Credentials.Password, human.KeyDelay); err != nil {
		return fmt.Errorf("failed to type password: %w", err)
	}
	if err := m.opts.Clock.Sleep(ctx, human.Duration(time.Second, 2*time.Second)); err != nil {
		return err
	}
	if err := m.driver.Submit(ctx, rules.SubmitSelectors); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	m.driver.Settle(ctx)
	return nil
}

// awaitVerification polls the URL until it leaves both the login and verify paths,
// returns to the login path, or the poll window is used up.
func (m *Machine) awaitVerification(ctx context.Context) (State, error) {
	if ok, err := m.prompt(ctx, "verification page reached, complete it in the browser window"); err != nil {
		return m.fail(err)
	} else if ok {
		m.driver.Settle(ctx)
	}

	rules := m.opts.Rules
	for waited := time.Duration(0); waited < m.opts.PollWindow; waited += m.opts.PollInterval {
		if err := m.opts.Clock.Sleep(ctx, m.opts.PollInterval); err != nil {
			return VerificationPending, err
		}
		url := m.driver.URL()
		m.logger.Debug("waiting for verification", "waited", waited+m.opts.PollInterval, "url", url)
		if rules.onLoginPath(url) {
			return m.fail(fmt.Errorf("returned to login page"))
		}
		if !rules.onVerifyPath(url) {
			return m.authenticate()
		}
	}

	if ok, err := m.prompt(ctx, "still on the verification page, confirm once it is cleared"); err != nil {
		return m.fail(err)
	} else if ok {
		m.driver.Settle(ctx)
		url := m.driver.URL()
		if !rules.onVerifyPath(url) && !rules.onLoginPath(url) {
			return m.authenticate()
		}
	}
	return m.fail(fmt.Errorf("still on verification page after %s", m.opts.PollWindow))
}

// prompt consults the operator. It reports false without asking when the hook is
// disabled or the session is headless, and returns an error when the operator skips.
func (m *Machine) prompt(ctx context.Context, reason string) (bool, error) {
	if !m.opts.Manual || m.opts.Headless || m.opts.Prompter == nil {
		return false, nil
	}
	ok, err := m.opts.Prompter.Confirm(ctx, reason)
	if err != nil {
		m.logger.Warn("manual verification prompt failed", "error", err)
		return false, nil
	}
	if !ok {
		return false, fmt.Errorf("operator skipped manual verification")
	}
	return true, nil
}

func (m *Machine) authenticate() (State, error) {
	m.set(Authenticated)
	if m.opts.OnAuthenticated != nil {
		if err := m.opts.OnAuthenticated(); err != nil {
			m.logger.Warn("post-login checkpoint failed", "error", err)
		}
	}
	return Authenticated, nil
}

func (m *Machine) fail(cause error) (State, error) {
	m.set(Failed)
	return Failed, fmt.Errorf("%w: %v", ErrVerificationFailed, cause)
}

func wallName(w Wall) string {
	switch w {
	case LoginWall:
		return "login"
	case VerifyWall:
		return "verify"
	default:
		return "none"
	}
}
