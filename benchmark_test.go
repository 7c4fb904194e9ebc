package modver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func BenchmarkResolve(b *testing.B) {
	modules := make(map[string]ChannelVersionSet, 200)
	live := make(map[string]EvaluationResponse)
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("FooModule_m%03d", i)
		modules[name] = ChannelVersionSet{ChannelRelease: fmt.Sprintf("h%d | 2024-01-01T00:00:00Z", i)}
		if i%4 == 0 {
			live[name] = liveResult(fmt.Sprintf("l%d|2024-02-01T00:00:00Z", i), "EVALUATION_RULE_MATCH")
		}
	}
	store := storeWith(modules)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	be := NewBatchEvaluator(&fakeEvaluator{results: live}, store, "proj", DefaultBatchSize, 0, logger)
	user := User{ID: "u", Channel: ChannelRelease}
	names := store.Names()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := be.Resolve(ctx, "Foo", user, names); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseVersionEntry(b *testing.B) {
	inputs := []string{
		"h1|2024-01-01T00:00:00Z",
		"h1 | 2024-01-01T00:00:00Z",
		"h1 *|* 2024-01-01T00:00:00Z",
		"None",
	}
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			ParseVersionEntry(inputs[i%len(inputs)])
			i++
		}
	})
}
