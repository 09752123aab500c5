package app

import (
	"context"
	"fmt"

	"github.com/okian/komito/internal/domain/event"
)

// Hook is the interception callback run once per dispatch, before any
// backend. It may edit the fields of data or veto the call.
type Hook func(ctx context.Context, data *HookData)

// HookData is the hook's mutable view of the event about to be sent.
type HookData struct {
	// Type is the producer type flag. Changes to it are ignored.
	Type     int
	Category string
	Action   string
	Label    string

	prevented bool
}

// PreventDefault vetoes the dispatch for every backend.
func (d *HookData) PreventDefault() { d.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (d *HookData) DefaultPrevented() bool { return d.prevented }

func newHookData(e event.Event) *HookData {
	flag := event.EventActionType
	if e.Kind == event.KindSocial {
		flag = event.SocialActionType
	}
	return &HookData{
		Type:     flag,
		Category: e.Category,
		Action:   e.Action,
		Label:    e.Label,
	}
}

// runHook returns the event to dispatch and whether it was vetoed. On a
// hook panic the edits are discarded and err is set.
func runHook(ctx context.Context, h Hook, e event.Event) (out event.Event, vetoed bool, err error) {
	data := newHookData(e)
	defer func() {
		if r := recover(); r != nil {
			out, vetoed, err = e, data.DefaultPrevented(), fmt.Errorf("%w: %v", ErrHookPanic, r)
		}
	}()

	h(ctx, data)
	if data.DefaultPrevented() {
		return e, true, nil
	}
	return e.WithFields(data.Category, data.Action, data.Label), false, nil
}
