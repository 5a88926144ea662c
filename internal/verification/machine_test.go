package verification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-crawler/internal/humanize"
)

type fakeClock struct {
	elapsed time.Duration
	onSleep func(total time.Duration)
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.elapsed += d
	if c.onSleep != nil {
		c.onSleep(c.elapsed)
	}
	return nil
}

type fakeDriver struct {
	url         string
	afterSubmit string
	typed       map[string]string
	keyDelays   []time.Duration
	submits     int
	submitErr   error
}

func (d *fakeDriver) URL() string { return d.url }

func (d *fakeDriver) Goto(_ context.Context, url string) error {
	d.url = url
	return nil
}

func (d *fakeDriver) Type(_ context.Context, selectors []string, text string, delay func() time.Duration) error {
	if d.typed == nil {
		d.typed = map[string]string{}
	}
	var b strings.Builder
	for _, r := range text {
		d.keyDelays = append(d.keyDelays, delay())
		b.WriteRune(r)
	}
	d.typed[selectors[0]] = b.String()
	return nil
}

func (d *fakeDriver) Submit(context.Context, []string) error {
	d.submits++
	if d.submitErr != nil {
		return d.submitErr
	}
	if d.afterSubmit != "" {
		d.url = d.afterSubmit
	}
	return nil
}

func (d *fakeDriver) Settle(context.Context) {}

type fakePrompter struct {
	answers []bool
	calls   int
}

func (p *fakePrompter) Confirm(context.Context, string) (bool, error) {
	p.calls++
	if len(p.answers) == 0 {
		return true, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func shopeeRules() Rules {
	return Rules{
		LoginURL:          "https://shopee.tw/buyer/login",
		LoginPath:         "/buyer/login",
		VerifyMarkers:     []string{"/verify", "traffic/error"},
		LoginTitleWords:   []string{"login", "登入"},
		LoginFormSelector: []string{`input[name="loginKey"]`},
		LoginKeywords:     []string{"login now", "立即登入"},
		EmailSelectors:    []string{`input[name="loginKey"]`},
		PasswordSelectors: []string{`input[name="password"]`},
		SubmitSelectors:   []string{`button[type="submit"]`},
	}
}

func newMachine(d Driver, clock Clock, opts Options) *Machine {
	opts.Clock = clock
	opts.Human = humanize.NewTestHumanizer(1)
	if opts.Rules.LoginPath == "" && len(opts.Rules.VerifyMarkers) == 0 {
		opts.Rules = shopeeRules()
	}
	return New(d, opts)
}

func TestVerifyRedirectFailsAfterPollWindow(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/verify/captcha"}
	clock := &fakeClock{}
	m := newMachine(driver, clock, Options{})

	state, err := m.Check(context.Background(), Page{URL: driver.url})

	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, 15*time.Second, clock.elapsed)
	assert.Equal(t, Failed, m.State())
}

func TestFailedIsTerminal(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/verify/traffic"}
	m := newMachine(driver, &fakeClock{}, Options{})
	_, _ = m.Check(context.Background(), Page{URL: driver.url})

	state, err := m.Check(context.Background(), Page{URL: "https://shopee.tw/search?keyword=bag"})

	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerificationClearsDuringPoll(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/verify/captcha"}
	clock := &fakeClock{}
	clock.onSleep = func(total time.Duration) {
		if total >= 6*time.Second {
			driver.url = "https://shopee.tw/search?keyword=bag"
		}
	}
	checkpoints := 0
	m := newMachine(driver, clock, Options{OnAuthenticated: func() error {
		checkpoints++
		return nil
	}})

	state, err := m.Check(context.Background(), Page{URL: driver.url})

	require.NoError(t, err)
	assert.Equal(t, Authenticated, state)
	assert.Equal(t, 6*time.Second, clock.elapsed)
	assert.Equal(t, 1, checkpoints)
}

func TestVerificationReturningToLoginFails(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/verify/captcha"}
	clock := &fakeClock{}
	clock.onSleep = func(time.Duration) { driver.url = "https://shopee.tw/buyer/login" }
	m := newMachine(driver, clock, Options{})

	state, err := m.Check(context.Background(), Page{URL: "https://shopee.tw/verify/captcha"})

	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, 3*time.Second, clock.elapsed)
}

func TestLoginSucceedsAndCheckpoints(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/buyer/login", afterSubmit: "https://shopee.tw/"}
	checkpoints := 0
	m := newMachine(driver, &fakeClock{}, Options{
		Credentials:     Credentials{Email: "a@b.tw", Password: "pw"},
		OnAuthenticated: func() error { checkpoints++; return nil },
	})

	state, err := m.Check(context.Background(), Page{URL: driver.url})

	require.NoError(t, err)
	assert.Equal(t, Authenticated, state)
	assert.Equal(t, 1, m.Attempts())
	assert.Equal(t, 1, checkpoints)
	assert.Equal(t, "a@b.tw", driver.typed[`input[name="loginKey"]`])
	assert.Equal(t, "pw", driver.typed[`input[name="password"]`])
	require.Len(t, driver.keyDelays, len("a@b.tw")+len("pw"))
	for _, d := range driver.keyDelays {
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestLoginAttemptsCappedAtThree(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/buyer/login", afterSubmit: "https://shopee.tw/buyer/login"}
	m := newMachine(driver, &fakeClock{}, Options{Credentials: Credentials{Email: "a@b.tw", Password: "pw"}})
	page := Page{URL: driver.url}

	for i := 1; i <= MaxLoginAttempts; i++ {
		state, err := m.Check(context.Background(), page)
		assert.Equal(t, LoginAttempted, state)
		assert.ErrorIs(t, err, ErrLoginRejected)
		assert.Equal(t, i, m.Attempts())
	}
	require.Equal(t, 3, driver.submits)

	state, err := m.Check(context.Background(), page)

	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, 3, driver.submits, "no submission after the cap")
	assert.Equal(t, MaxLoginAttempts, m.Attempts())
}

func TestLoginWallAfterAuthenticationKeepsSessionState(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/buyer/login", afterSubmit: "https://shopee.tw/"}
	var logs bytes.Buffer
	m := newMachine(driver, &fakeClock{}, Options{
		Credentials: Credentials{Email: "a@b.tw", Password: "pw"},
		Logger:      slog.New(slog.NewTextHandler(&logs, nil)),
	})

	state, err := m.Check(context.Background(), Page{URL: "https://shopee.tw/buyer/login"})
	require.NoError(t, err)
	require.Equal(t, Authenticated, state)

	driver.url = "https://shopee.tw/buyer/login"
	state, err = m.Check(context.Background(), Page{URL: driver.url})

	require.NoError(t, err)
	assert.Equal(t, Authenticated, state)
	assert.Equal(t, 2, m.Attempts())
	assert.NotContains(t, logs.String(), "to=anonymous")
	assert.Contains(t, logs.String(), "from=authenticated to=login_attempted")
}

func TestLoginRedirectsToVerification(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/buyer/login", afterSubmit: "https://shopee.tw/verify/otp"}
	clock := &fakeClock{}
	clock.onSleep = func(total time.Duration) {
		if driver.submits > 0 && total > 10*time.Second {
			driver.url = "https://shopee.tw/user/account"
		}
	}
	m := newMachine(driver, clock, Options{Credentials: Credentials{Email: "a@b.tw", Password: "pw"}})

	state, err := m.Check(context.Background(), Page{URL: driver.url})

	require.NoError(t, err)
	assert.Equal(t, Authenticated, state)
}

func TestLoginWithoutCredentials(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/buyer/login"}
	m := newMachine(driver, &fakeClock{}, Options{})

	state, err := m.Check(context.Background(), Page{URL: driver.url})

	assert.Equal(t, Anonymous, state)
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Zero(t, driver.submits)
}

func TestSubmitErrorCountsAsAttempt(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/buyer/login", submitErr: errors.New("detached")}
	m := newMachine(driver, &fakeClock{}, Options{Credentials: Credentials{Email: "a", Password: "b"}})

	state, err := m.Check(context.Background(), Page{URL: driver.url})

	assert.Equal(t, LoginAttempted, state)
	assert.ErrorIs(t, err, ErrLoginRejected)
	assert.Equal(t, 1, m.Attempts())
}

func TestManualPromptSkipAborts(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/verify/captcha"}
	prompter := &fakePrompter{answers: []bool{false}}
	clock := &fakeClock{}
	m := newMachine(driver, clock, Options{Manual: true, Prompter: prompter})

	state, err := m.Check(context.Background(), Page{URL: driver.url})

	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, 1, prompter.calls)
	assert.Zero(t, clock.elapsed)
}

func TestManualPromptIgnoredWhenHeadless(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/verify/captcha"}
	prompter := &fakePrompter{}
	m := newMachine(driver, &fakeClock{}, Options{Manual: true, Headless: true, Prompter: prompter})

	state, _ := m.Check(context.Background(), Page{URL: driver.url})

	assert.Equal(t, Failed, state)
	assert.Zero(t, prompter.calls)
}

func TestManualConfirmAfterTimeout(t *testing.T) {
	driver := &fakeDriver{url: "https://shopee.tw/verify/captcha"}
	clock := &fakeClock{}
	prompter := &fakePrompter{answers: []bool{true, true}}
	clock.onSleep = func(total time.Duration) {
		if total >= 15*time.Second {
			driver.url = "https://shopee.tw/"
		}
	}
	m := newMachine(driver, clock, Options{Manual: true, Prompter: prompter})

	state, err := m.Check(context.Background(), Page{URL: "https://shopee.tw/verify/captcha"})

	require.NoError(t, err)
	assert.Equal(t, Authenticated, state)
}

func TestBlockHookReceivesClassification(t *testing.T) {
	var kinds []BlockKind
	driver := &fakeDriver{url: "https://shopee.tw/verify/traffic/error"}
	m := newMachine(driver, &fakeClock{}, Options{OnBlock: func(k BlockKind) { kinds = append(kinds, k) }})

	_, _ = m.Check(context.Background(), Page{URL: driver.url, Content: strings.Repeat("x", 200)})

	assert.Equal(t, []BlockKind{BlockRateLimited}, kinds)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "verification_pending", VerificationPending.String())
	assert.Equal(t, "unknown", State(42).String())
}
