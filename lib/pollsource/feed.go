// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"context"
	"sync"

	"github.com/bureau-foundation/pollhistory/lib/poll"
)

// feedBuffer is the per-subscriber channel capacity.
const feedBuffer = 64

type subscriber struct {
	ctx     context.Context
	channel chan poll.Record
}

// feed fans records out to subscribers. Publish blocks on a full
// subscriber until that subscriber's context ends, so records are not
// dropped while the consumer is alive.
type feed struct {
	mutex       sync.RWMutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

// subscribe registers a channel that is closed once ctx is done or the
// feed is shut down. Subscribing to a shut down feed returns a closed
// channel.
func (f *feed) subscribe(ctx context.Context) <-chan poll.Record {
	entry := &subscriber{ctx: ctx, channel: make(chan poll.Record, feedBuffer)}

	f.mutex.Lock()
	if f.closed {
		close(entry.channel)
		f.mutex.Unlock()
		return entry.channel
	}
	if f.subscribers == nil {
		f.subscribers = make(map[*subscriber]struct{})
	}
	f.subscribers[entry] = struct{}{}
	f.mutex.Unlock()

	go func() {
		<-ctx.Done()
		f.mutex.Lock()
		if _, ok := f.subscribers[entry]; ok {
			delete(f.subscribers, entry)
			close(entry.channel)
		}
		f.mutex.Unlock()
	}()
	return entry.channel
}

// shutdown closes every subscriber channel. Publishing afterwards is a
// no-op.
func (f *feed) shutdown() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.closed = true
	for entry := range f.subscribers {
		delete(f.subscribers, entry)
		close(entry.channel)
	}
}

func (f *feed) publish(record poll.Record) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	for entry := range f.subscribers {
		select {
		case entry.channel <- record.Clone():
		case <-entry.ctx.Done():
		}
	}
}

func (f *feed) subscriberCount() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return len(f.subscribers)
}
