package orchestrator

import (
	"github.com/membench/membench/internal/config"
	"github.com/membench/membench/internal/domain"
)

// Expand produces the full Cartesian product of models, memory methods,
// and benchmarks as an ordered job list. The nesting is fixed with models
// outermost, memory methods middle, and benchmarks innermost, so a job's
// ordinal position is stable across runs of the same configuration and
// can be correlated with logs.
func Expand(models []config.ModelRef, memoryMethods, benchmarks []string) []domain.JobSpec {
	specs := make([]domain.JobSpec, 0, len(models)*len(memoryMethods)*len(benchmarks))
	for _, m := range models {
		for _, mem := range memoryMethods {
			for _, b := range benchmarks {
				specs = append(specs, domain.JobSpec{
					ModelProvider: m.Provider,
					ModelName:     m.Name,
					MemoryMethod:  mem,
					Benchmark:     b,
				})
			}
		}
	}
	return specs
}
