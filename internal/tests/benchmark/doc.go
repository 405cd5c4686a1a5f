// Package benchmark measures the engine against each storage backend,
// token handling, and at-rest encryption.
//
//	go test -run=^$ -bench=. -benchmem ./internal/tests/benchmark/
//
// Engine benchmarks prefill 1k, 10k and 100k records. Compare runs with
// benchstat:
//
//	go test -run=^$ -bench=Engine -count=6 ./internal/tests/benchmark/ > new.txt
//	benchstat old.txt new.txt
package benchmark
