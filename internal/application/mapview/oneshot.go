package mapview

import "sync"

// OneShot defers an action until an event fires once.  Arming it again while
// pending replaces the action but does not add a second listener, so the
// latest deferred update runs exactly once.
type OneShot struct {
	mu      sync.Mutex
	pending bool
	seq     uint64
	action  func()
	unsub   Unsubscribe
}

// Arm registers action to run on the next event delivered through subscribe.
// It reports whether a new listener was registered.
func (o *OneShot) Arm(subscribe func(Handler) Unsubscribe, action func()) bool {
	o.mu.Lock()
	o.action = action
	if o.pending {
		o.mu.Unlock()
		return false
	}
	o.pending = true
	o.seq++
	seq := o.seq
	o.mu.Unlock()

	unsub := subscribe(func(Event) { o.fire(seq) })

	o.mu.Lock()
	if o.pending && o.seq == seq {
		o.unsub = unsub
		o.mu.Unlock()
		return true
	}
	o.mu.Unlock()
	// fired or cancelled while subscribing
	if unsub != nil {
		unsub()
	}
	return true
}

func (o *OneShot) fire(seq uint64) {
	o.mu.Lock()
	if !o.pending || o.seq != seq {
		o.mu.Unlock()
		return
	}
	act, unsub := o.action, o.unsub
	o.pending, o.action, o.unsub = false, nil, nil
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if act != nil {
		act()
	}
}

// Pending reports whether an action is waiting.
func (o *OneShot) Pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

// Cancel drops the pending action and its listener.
func (o *OneShot) Cancel() {
	o.mu.Lock()
	unsub := o.unsub
	o.pending, o.action, o.unsub = false, nil, nil
	o.seq++
	o.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

//Personal.AI order the ending
