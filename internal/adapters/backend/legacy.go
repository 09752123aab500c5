package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/komito/internal/host"
)

// ClickTale reports "category:action:label" to ClickTaleEvent. It is always
// attempted; with no receiver the send is a no-op reported as ErrUnavailable.
type ClickTale struct{}

// NewClickTale creates the ClickTale adapter.
func NewClickTale() *ClickTale { return &ClickTale{} }

// Name implements Adapter.
func (c *ClickTale) Name() string { return NameClickTale }

// Args implements Adapter.
func (c *ClickTale) Args(d Dispatch) []any {
	return []any{host.GlobalClickTale, strings.Join(d.Event.Legacy(), ":")}
}

// Available implements Adapter.
func (c *ClickTale) Available(host.Env) bool { return true }

// Send implements Adapter.
func (c *ClickTale) Send(_ context.Context, d Dispatch, env host.Env) error {
	fn, ok := callable(env, host.GlobalClickTale)
	if !ok {
		return ErrUnavailable
	}
	if err := fn.Invoke(strings.Join(d.Event.Legacy(), ":")); err != nil {
		return fmt.Errorf("clicktale: %w", err)
	}
	return nil
}

// Utm calls the legacy urchin __utmTrackEvent function.
type Utm struct{}

// NewUtm creates the urchin adapter.
func NewUtm() *Utm { return &Utm{} }

// Name implements Adapter.
func (u *Utm) Name() string { return NameUtm }

// Args implements Adapter.
func (u *Utm) Args(d Dispatch) []any {
	return append([]any{host.GlobalUtm}, d.Event.LegacyArgs()...)
}

// Available implements Adapter.
func (u *Utm) Available(env host.Env) bool {
	_, ok := callable(env, host.GlobalUtm)
	return ok
}

// Send implements Adapter.
func (u *Utm) Send(_ context.Context, d Dispatch, env host.Env) error {
	fn, ok := callable(env, host.GlobalUtm)
	if !ok {
		return ErrUnavailable
	}
	if err := fn.Invoke(d.Event.LegacyArgs()...); err != nil {
		return fmt.Errorf("utm: %w", err)
	}
	return nil
}

// Baidu pushes _trackEvent commands onto the Baidu Tongji _hmt queue.
type Baidu struct{}

// NewBaidu creates the Baidu Tongji adapter.
func NewBaidu() *Baidu { return &Baidu{} }

// Name implements Adapter.
func (b *Baidu) Name() string { return NameBaidu }

// Args implements Adapter.
func (b *Baidu) Args(d Dispatch) []any {
	return []any(b.command(d))
}

func (b *Baidu) command(d Dispatch) host.Command {
	return append(host.Command{"_trackEvent"}, d.Event.LegacyArgs()...)
}

// Available implements Adapter.
func (b *Baidu) Available(env host.Env) bool {
	_, ok := baiduQueue(env)
	return ok
}

// Send implements Adapter.
func (b *Baidu) Send(_ context.Context, d Dispatch, env host.Env) error {
	hmt, ok := baiduQueue(env)
	if !ok {
		return ErrUnavailable
	}
	if err := hmt.Push(b.command(d)); err != nil {
		return fmt.Errorf("baidu: _hmt.push: %w", err)
	}
	return nil
}

func baiduQueue(env host.Env) (host.Pusher, bool) {
	v, ok := env.Lookup(host.GlobalBaidu)
	if !ok {
		return nil, false
	}
	p, ok := v.(host.Pusher)
	if !ok || !host.HasMethod(v, "push") {
		return nil, false
	}
	return p, true
}

func callable(env host.Env, name string) (host.Func, bool) {
	v, ok := env.Lookup(name)
	if !ok {
		return nil, false
	}
	fn, ok := v.(host.Func)
	if !ok || !host.IsCallable(v) {
		return nil, false
	}
	return fn, true
}
