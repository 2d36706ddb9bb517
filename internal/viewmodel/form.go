package viewmodel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

// MsgCodeExists is shown when an insert hits a taken item code.
const MsgCodeExists = "Code already exists!"

// ErrorTimeout is how long a form error stays visible.
const ErrorTimeout = 3 * time.Second

// ErrFormBusy is returned for any form action while a submit is in flight.
var ErrFormBusy = errors.New("form is submitting")

// ItemForm is an add/edit session for one menu item.
//
// Opened with a record it edits a copy of that record; opened with nil it
// starts from empty defaults. The draft resets after a successful submit, on
// Close and when the edit target goes back to nil.
type ItemForm struct {
	items      *ItemCoordinator
	log        zerolog.Logger
	clearAfter time.Duration

	mu         sync.Mutex
	draft      ItemDraft
	target     *domain.Item
	submitting bool
	errMsg     string
	errSeq     uint64
	errTimer   *time.Timer
	hooks      []func()
}

// NewItemForm returns a form in add mode.
func NewItemForm(items *ItemCoordinator, lg zerolog.Logger) *ItemForm {
	return &ItemForm{items: items, log: lg, clearAfter: ErrorTimeout}
}

// Open switches to edit mode for rec, or back to add mode when rec is nil.
// Opening a record clears a visible error.
func (f *ItemForm) Open(rec *domain.Item) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrFormBusy
	}
	if rec == nil {
		f.resetLocked()
	} else {
		cp := *rec
		f.target = &cp
		f.draft = DraftFrom(cp)
		f.clearErrorLocked()
	}
	f.mu.Unlock()
	f.notify()
	return nil
}

// Close discards the draft.
func (f *ItemForm) Close() error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrFormBusy
	}
	f.resetLocked()
	f.mu.Unlock()
	f.notify()
	return nil
}

// Update edits the draft in place. The draft's ID cannot be changed.
func (f *ItemForm) Update(fn func(d *ItemDraft)) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrFormBusy
	}
	id := f.draft.ID
	fn(&f.draft)
	f.draft.ID = id
	f.mu.Unlock()
	f.notify()
	return nil
}

// Submit inserts or updates the draft.
//
// An insert rejected for a taken code shows MsgCodeExists and keeps the
// draft. An update is always treated as successful: a failure is logged and
// the form still resets.
func (f *ItemForm) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrFormBusy
	}
	if !f.draft.Complete() {
		f.mu.Unlock()
		return ErrMissingFields
	}
	f.submitting = true
	d := f.draft
	editing := f.target != nil
	f.mu.Unlock()
	f.notify()

	var err error
	if editing {
		if uerr := f.items.UpdateItem(ctx, d.ID, d); uerr != nil {
			f.log.Warn().Err(uerr).Int64("item_id", d.ID).Msg("item update failed")
		}
	} else {
		_, err = f.items.AddItem(ctx, d)
	}

	f.mu.Lock()
	f.submitting = false
	switch {
	case err == nil:
		f.resetLocked()
	case errors.Is(err, ErrConstraintViolation):
		f.setErrorLocked(MsgCodeExists)
	default:
		f.log.Error().Err(err).Str("code", d.Code).Msg("item insert failed")
	}
	f.mu.Unlock()
	f.notify()
	return err
}

// Draft returns a copy of the draft.
func (f *ItemForm) Draft() ItemDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.draft
	if d.Price != nil {
		p := *d.Price
		d.Price = &p
	}
	if d.CategoryID != nil {
		c := *d.CategoryID
		d.CategoryID = &c
	}
	return d
}

// Editing reports whether the form edits an existing item.
func (f *ItemForm) Editing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target != nil
}

// Submitting reports whether a submit is in flight. Views disable every
// control while it is.
func (f *ItemForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// CanSubmit reports whether Submit would be attempted.
func (f *ItemForm) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.submitting && f.draft.Complete()
}

// Error returns the visible error message, or "".
func (f *ItemForm) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// OnChange registers fn to run after every form change.
func (f *ItemForm) OnChange(fn func()) {
	f.mu.Lock()
	f.hooks = append(f.hooks, fn)
	f.mu.Unlock()
}

func (f *ItemForm) resetLocked() {
	f.target = nil
	f.draft = ItemDraft{}
}

func (f *ItemForm) setErrorLocked(msg string) {
	f.clearErrorLocked()
	f.errMsg = msg
	seq := f.errSeq
	f.errTimer = time.AfterFunc(f.clearAfter, func() {
		f.mu.Lock()
		if f.errSeq != seq {
			f.mu.Unlock()
			return
		}
		f.errMsg = ""
		f.mu.Unlock()
		f.notify()
	})
}

func (f *ItemForm) clearErrorLocked() {
	if f.errTimer != nil {
		f.errTimer.Stop()
		f.errTimer = nil
	}
	f.errMsg = ""
	f.errSeq++
}

func (f *ItemForm) notify() {
	f.mu.Lock()
	hooks := append([]func(){}, f.hooks...)
	f.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
