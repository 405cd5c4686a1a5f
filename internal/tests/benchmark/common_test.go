package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/internal/core/service"
	"github.com/yndnr/tokstash-go/internal/storage"
	"github.com/yndnr/tokstash-go/internal/storage/memory"
)

// RecordCounts defines the prefilled record counts for benchmarking.
var RecordCounts = []int{1000, 10000, 100000}

// benchTTL keeps prefilled records valid for the whole run.
const benchTTL = 3600

// newPayload returns a small representative payload.
func newPayload(i int) domain.Payload {
	return domain.Payload{
		"user_id": fmt.Sprintf("user-%d", i%1000),
		"scope":   "read write",
		"ip":      "192.168.1.1",
	}
}

// backends lists the stores the engine benchmarks run against.
func backends(b *testing.B) map[string]func() service.Store {
	return map[string]func() service.Store{
		"memory": func() service.Store {
			return memory.New()
		},
		"badger": func() service.Store {
			cfg := storage.DefaultBadgerConfig("")
			cfg.InMemory = true
			s, err := storage.NewBadgerStore(cfg, nil)
			if err != nil {
				b.Fatalf("open badger: %v", err)
			}
			b.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

// prefill creates count tokens and returns them.
func prefill(b *testing.B, ctx context.Context, engine *service.Engine, count int) []string {
	b.Helper()
	tokens := make([]string, count)
	for i := 0; i < count; i++ {
		res, err := engine.Create(ctx, newPayload(i), benchTTL)
		if err != nil {
			b.Fatalf("prefill create: %v", err)
		}
		tokens[i] = res.Token
	}
	return tokens
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithBackends runs benchFn for every backend and record count.
func runWithBackends(b *testing.B, counts []int, benchFn func(b *testing.B, engine *service.Engine, tokens []string)) {
	for name, open := range backends(b) {
		for _, count := range counts {
			b.Run(fmt.Sprintf("%s/records_%d", name, count), func(b *testing.B) {
				ctx := context.Background()
				engine := service.NewEngine(open())
				tokens := prefill(b, ctx, engine, count)
				b.ResetTimer()
				b.ReportAllocs()
				benchFn(b, engine, tokens)
			})
		}
	}
}

// sizeLabel returns a human-readable size label.
func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
