package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	LLMRequests        = "engines.requests"
	LLMFailures        = "engines.failures"
	PromptTokens       = "engines.prompt-tokens"
	SearchQueries      = "search.queries"
	SearchFailures     = "search.failures"
	LoopRuns           = "agency.runs"
	LoopIterations     = "agency.iterations"
	LoopParseFailures  = "agency.parse-failures"
	LoopToolFailures   = "agency.tool-failures"
	PagesBrowsed       = "tools.pages-browsed"
	CompositionsIssued = "composer.compositions"
)

type Counter struct {
	Name  string
	Value int64
	Since time.Time
}

// PerSecond is the average rate since the counter was first ticked.
func (c Counter) PerSecond() float64 {
	elapsed := time.Since(c.Since).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(c.Value) / elapsed
}

var counters = make(map[string]*Counter)
var countersLock = sync.RWMutex{}

func Tick(name string, value int64) {
	countersLock.Lock()
	if counter, exists := counters[name]; exists {
		counter.Value += value
	} else {
		counters[name] = &Counter{
			Name:  name,
			Value: value,
			Since: time.Now(),
		}
	}
	countersLock.Unlock()
}

func Get(name string) int64 {
	countersLock.RLock()
	defer countersLock.RUnlock()

	counter, exists := counters[name]
	if !exists {
		return 0
	}
	return counter.Value
}

// Snapshot returns a copy of all counters sorted by name.
func Snapshot() []Counter {
	countersLock.RLock()
	result := make([]Counter, 0, len(counters))
	for _, counter := range counters {
		result = append(result, *counter)
	}
	countersLock.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func Reset() {
	countersLock.Lock()
	counters = make(map[string]*Counter)
	countersLock.Unlock()
}
