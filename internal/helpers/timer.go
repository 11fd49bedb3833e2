package helpers

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Timer struct {
	data  []timerData
	mutex sync.Mutex
}

type timerData struct {
	time  time.Time
	name  string
	isEnd bool
}

func (t *Timer) Begin(name string) {
	if t != nil {
		t.mutex.Lock()
		defer t.mutex.Unlock()
		t.data = append(t.data, timerData{
			name: name,
			time: time.Now(),
		})
	}
}

func (t *Timer) End(name string) {
	if t != nil {
		t.mutex.Lock()
		defer t.mutex.Unlock()
		t.data = append(t.data, timerData{
			name:  name,
			time:  time.Now(),
			isEnd: true,
		})
	}
}

type TimerEntry struct {
	Name     string
	Depth    int
	Duration time.Duration
}

// Pairs up every "Begin" with its "End" and returns the entries in the order
// the phases began. Unbalanced timers are a programming error.
func (t *Timer) Entries() []TimerEntry {
	if t == nil {
		return nil
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()

	type pair struct {
		timerData
		index int
	}

	var entries []TimerEntry
	var stack []pair

	for _, item := range t.data {
		if !item.isEnd {
			stack = append(stack, pair{timerData: item, index: len(entries)})
			entries = append(entries, TimerEntry{Name: item.name, Depth: len(stack) - 1})
		} else {
			last := len(stack) - 1
			top := stack[last]
			stack = stack[:last]
			if item.name != top.name {
				panic("Internal error")
			}
			entries[top.index].Duration = item.time.Sub(top.time)
		}
	}

	return entries
}

func (t *Timer) Log(log zerolog.Logger) {
	for _, entry := range t.Entries() {
		log.Debug().
			Str("phase", entry.Name).
			Int("depth", entry.Depth).
			Dur("duration", entry.Duration).
			Msg("timing")
	}
}
