package persistence

import (
	"context"
	"time"

	"github.com/iconidentify/cardvault/internal/domain"
)

// AutoSavePayload is one ordering handed to the auto-save loop. Saved, when
// set, runs after the ordering was written successfully.
type AutoSavePayload struct {
	State domain.ItemOrderingState
	Saved func()
}

// AutoSaveFunc returns the next payload, or nil when nothing changed.
type AutoSaveFunc func() *AutoSavePayload

// StartAutoSave polls callback every AutoSaveInterval and writes its payload.
// Writes closer than AutoSaveThrottle to the previous ordering write are
// deferred to a later tick; a newer payload replaces a deferred one. A failed
// write is retried on the next tick.
// Calling StartAutoSave again replaces the running loop. The owner must call
// StopAutoSave when it is torn down.
func (a *Adapter) StartAutoSave(callback AutoSaveFunc) {
	a.autoMu.Lock()
	defer a.autoMu.Unlock()

	a.stopAutoSaveLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.autoCancel = cancel
	a.autoDone = done

	go a.autoSaveLoop(ctx, callback, done)
	a.logger.Debug("auto-save started", "interval", a.cfg.AutoSaveInterval, "throttle", a.cfg.AutoSaveThrottle)
}

// StopAutoSave stops the auto-save loop and waits for it to exit. A payload
// still held back by the throttle is written before returning.
func (a *Adapter) StopAutoSave() {
	a.autoMu.Lock()
	defer a.autoMu.Unlock()
	a.stopAutoSaveLocked()
}

// stopAutoSaveLocked must be called with autoMu held. The loop never takes
// autoMu, so waiting for it here cannot deadlock.
func (a *Adapter) stopAutoSaveLocked() {
	cancel, done := a.autoCancel, a.autoDone
	a.autoCancel, a.autoDone = nil, nil
	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.logger.Debug("auto-save stopped")
}

// AutoSaveRunning reports whether an auto-save loop is active.
func (a *Adapter) AutoSaveRunning() bool {
	a.autoMu.Lock()
	defer a.autoMu.Unlock()
	return a.autoCancel != nil
}

func (a *Adapter) autoSaveLoop(ctx context.Context, callback AutoSaveFunc, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.AutoSaveInterval)
	defer ticker.Stop()

	var pending *AutoSavePayload
	for {
		select {
		case <-ctx.Done():
			if pending != nil && a.SaveOrdering(context.Background(), pending.State) {
				pending.saved()
			}
			return
		case <-ticker.C:
			if payload := callback(); payload != nil {
				pending = payload
			}
			if pending != nil && a.writeIfDue(pending.State) {
				pending.saved()
				pending = nil
			}
		}
	}
}

func (p *AutoSavePayload) saved() {
	if p.Saved != nil {
		p.Saved()
	}
}

// writeIfDue writes state unless the previous ordering write is within the
// throttle window. It reports whether state was written.
func (a *Adapter) writeIfDue(state domain.ItemOrderingState) bool {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if !a.lastWrite.IsZero() && a.now().Sub(a.lastWrite) < a.cfg.AutoSaveThrottle {
		return false
	}
	return a.saveOrderingLocked(context.Background(), state)
}
