package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTypedEvent(t *testing.T) {
	event := NewTypedEvent(context.Background(), CatalogSyncCompleted, CatalogSyncEvent{Cards: 10})
	assert.Equal(t, CatalogSyncCompleted, event.Type)

	data, ok := GetTypedData[CatalogSyncEvent](event)
	require.True(t, ok)
	assert.Equal(t, 10, data.Cards)

	_, ok = GetTypedData[BackupEvent](event)
	assert.False(t, ok)

	_, ok = GetTypedData[BackupEvent](Event{Type: "empty"})
	assert.False(t, ok)
}

func TestDispatcher_FiltersAndContinuesOnError(t *testing.T) {
	d := NewEventDispatcher(nil)

	var catalogEvents, allEvents []string
	failing := NewFuncObserver("failing", func(Event) error { return errors.New("boom") })
	catalog := NewFuncObserver("catalog", func(e Event) error {
		catalogEvents = append(catalogEvents, e.Type)
		return nil
	}, "catalog:")
	all := NewFuncObserver("all", func(e Event) error {
		allEvents = append(allEvents, e.Type)
		return nil
	})

	d.Register(failing)
	d.Register(catalog)
	d.Register(all)
	assert.Equal(t, 3, d.ObserverCount())

	d.Dispatch(Event{Type: CatalogSyncStarted})
	d.Dispatch(Event{Type: BackupCreated})

	assert.Equal(t, []string{CatalogSyncStarted}, catalogEvents)
	assert.Equal(t, []string{CatalogSyncStarted, BackupCreated}, allEvents)

	d.Unregister(failing)
	assert.Equal(t, 2, d.ObserverCount())
}

func TestDispatcher_Async(t *testing.T) {
	d := NewEventDispatcher(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	d.Register(NewFuncObserver("async", func(Event) error {
		wg.Done()
		return nil
	}))
	d.Register(NewLoggingObserver(nil))

	d.DispatchAsync(Event{Type: BackupFailed})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async observer was not called")
	}
}
