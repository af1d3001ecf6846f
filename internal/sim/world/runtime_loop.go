package world

import (
	"context"
	"errors"
	"time"
)

var ErrWorldBusy = errors.New("world request queue full")

type commandReq struct {
	Cmd  Command
	Resp chan CommandResult
}

type subscribeReq struct {
	ID   string
	Out  chan []byte
	Resp chan bool
}

type stateReq struct {
	Resp chan State
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	defer w.unload()

	var pending []commandReq
	var pendingState []stateReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.commands:
			pending = append(pending, req)
		case req := <-w.subscribe:
			w.handleSubscribe(req)
		case id := <-w.unsubscribe:
			w.handleUnsubscribe(id)
		case req := <-w.stateReq:
			pendingState = append(pendingState, req)
		case <-ticker.C:
			w.stepInternal(pending)
			for _, r := range pendingState {
				select {
				case r.Resp <- w.state():
				default:
				}
			}
			pending = pending[:0]
			pendingState = pendingState[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce runs one tick with the given commands, in order, using the same
// path as the loop. It must not be called concurrently with Run.
func (w *World) StepOnce(cmds ...Command) (tick uint64, results []CommandResult) {
	reqs := make([]commandReq, 0, len(cmds))
	resps := make([]chan CommandResult, 0, len(cmds))
	for _, c := range cmds {
		ch := make(chan CommandResult, 1)
		reqs = append(reqs, commandReq{Cmd: c, Resp: ch})
		resps = append(resps, ch)
	}
	tick = w.tick.Load()
	w.stepInternal(reqs)
	for _, ch := range resps {
		results = append(results, <-ch)
	}
	return tick, results
}

// Submit queues a command for the next tick and waits for its result.
// Safe to call from other goroutines.
func (w *World) Submit(ctx context.Context, cmd Command) (CommandResult, error) {
	resp := make(chan CommandResult, 1)
	select {
	case w.commands <- commandReq{Cmd: cmd, Resp: resp}:
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	default:
		return CommandResult{}, ErrWorldBusy
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// Subscribe registers out for POWER/RETIRE pushes. Messages are dropped when out is full.
func (w *World) Subscribe(ctx context.Context, id string, out chan []byte) error {
	resp := make(chan bool, 1)
	select {
	case w.subscribe <- subscribeReq{ID: id, Out: out, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe removes an observer. When the loop does not accept the request
// within unsubscribeWait, the id is parked and reaped on the next broadcast.
func (w *World) Unsubscribe(id string) {
	t := time.NewTimer(w.unsubscribeWait)
	defer t.Stop()
	select {
	case w.unsubscribe <- id:
	case <-w.stop:
	case <-w.loopDone:
	case <-t.C:
		w.lateMu.Lock()
		w.lateUnsub[id] = struct{}{}
		w.lateMu.Unlock()
		w.logger.Printf("unsubscribe %s: queue full, deferring", id)
	}
}

// unload releases the per-world network state once the loop exits.
func (w *World) unload() {
	defer func() {
		select {
		case <-w.loopDone:
		default:
			close(w.loopDone)
		}
	}()
	w.conduits.Reset()
	for id := range w.observers {
		delete(w.observers, id)
	}
	w.publishStats()
	w.logger.Printf("world unloaded at tick %d", w.tick.Load())
}

// RequestState returns a consistent view taken at a tick boundary.
func (w *World) RequestState(ctx context.Context) (State, error) {
	resp := make(chan State, 1)
	select {
	case w.stateReq <- stateReq{Resp: resp}:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}
