package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

type RequestLimiter interface {
	// Run operation once a slot is available in the window. Returns false if the
	// operation was not run, either because ctx was cancelled or because waiting for
	// a slot would not leave maxOperationTime before the ctx deadline.
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool
}

// WindowLimiter allows at most limit operations to finish within any window
type WindowLimiter struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	availableSlots   chan struct{}
	finishedRequests []time.Time
	mutex            sync.Mutex
}

func NewWindowLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *WindowLimiter {
	if limit < 1 {
		panic("logic error: window limiter needs a positive limit")
	}

	availableSlots := make(chan struct{}, limit)
	for range limit {
		availableSlots <- struct{}{}
	}

	// No finished requests within the window -> no waiting for the first requests
	finishedRequests := make([]time.Time, limit)
	veryOldTime := nowFunc().Add(-window)
	for i := range limit {
		finishedRequests[i] = veryOldTime
	}

	return &WindowLimiter{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		availableSlots:   availableSlots,
		finishedRequests: finishedRequests,
	}
}

func insertSortedOrder(arr []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(arr, t, time.Time.Compare)
	return slices.Insert(arr, i, t)
}

func (l *WindowLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool {
	// Make sure there is data in the request history
	select {
	case <-l.availableSlots:
		defer func() {
			l.availableSlots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldestRequest, ok := l.grabOldestFinishedRequest(ctx, maxOperationTime)
	if !ok {
		return false
	}
	// If we return without running the operation, we reinsert the request we grabbed
	requestToInsert := oldestRequest
	defer func() {
		l.insertFinishedRequest(requestToInsert)
	}()

	if wait := l.computeWait(oldestRequest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	operation(ctx)

	requestToInsert = l.nowFunc()
	return true
}

func (l *WindowLimiter) computeWait(oldRequest time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(oldRequest)
}

func (l *WindowLimiter) insertFinishedRequest(finishedRequest time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.finishedRequests = insertSortedOrder(l.finishedRequests, finishedRequest)
}

func (l *WindowLimiter) grabOldestFinishedRequest(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldestRequest := l.finishedRequests[0]

	if deadline, ok := ctx.Deadline(); ok {
		wait := max(l.computeWait(oldestRequest), 0)
		if wait+maxOperationTime > deadline.Sub(l.nowFunc()) {
			return time.Time{}, false
		}
	}

	l.finishedRequests = l.finishedRequests[1:]
	return oldestRequest, true
}

var _ RequestLimiter = (*WindowLimiter)(nil)
