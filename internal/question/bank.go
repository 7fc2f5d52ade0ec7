package question

import "github.com/ashureev/skillcheck/internal/domain"

// DefaultBank returns the built-in question set used when no question file
// is configured. Categories span the core competency areas with at least
// one question per difficulty tier where it makes sense.
func DefaultBank() []domain.Question {
	return []domain.Question{
		{
			ID:              "lang-basics-1",
			SkillCategory:   "language",
			Difficulty:      1,
			Prompt:          "What is the difference between a slice and an array, and when would you choose one over the other?",
			ExpectedSignals: []string{"fixed vs dynamic length", "value vs reference semantics", "backing array"},
		},
		{
			ID:              "lang-interfaces-3",
			SkillCategory:   "language",
			Difficulty:      3,
			Prompt:          "Explain how interface values are represented at runtime and why a nil pointer stored in an interface is not a nil interface.",
			ExpectedSignals: []string{"type and value pair", "typed nil", "comparison against nil"},
		},
		{
			ID:              "lang-generics-4",
			SkillCategory:   "language",
			Difficulty:      4,
			Prompt:          "When do generics improve an API and when do they hurt it? Give an example of each.",
			ExpectedSignals: []string{"type parameters", "constraint design", "interface alternative"},
		},
		{
			ID:              "concurrency-basics-1",
			SkillCategory:   "concurrency",
			Difficulty:      1,
			Prompt:          "What is a goroutine and how does it differ from an operating system thread?",
			ExpectedSignals: []string{"scheduler multiplexing", "stack growth", "cheap creation"},
		},
		{
			ID:              "concurrency-channels-2",
			SkillCategory:   "concurrency",
			Difficulty:      2,
			Prompt:          "Compare buffered and unbuffered channels. When does sending block in each case?",
			ExpectedSignals: []string{"synchronization point", "capacity", "blocking semantics"},
		},
		{
			ID:              "concurrency-patterns-4",
			SkillCategory:   "concurrency",
			Difficulty:      4,
			Prompt:          "Design a worker pool that can be shut down gracefully without losing accepted work. Walk through the coordination.",
			ExpectedSignals: []string{"context cancellation", "draining", "WaitGroup", "closed channel signal"},
		},
		{
			ID:              "concurrency-memmodel-5",
			SkillCategory:   "concurrency",
			Difficulty:      5,
			Prompt:          "Describe a data race that the race detector would catch but that rarely misbehaves in practice, and explain why it is still a bug under the memory model.",
			ExpectedSignals: []string{"happens-before", "torn reads", "compiler reordering"},
		},
		{
			ID:              "errors-basics-1",
			SkillCategory:   "errors",
			Difficulty:      1,
			Prompt:          "How do you return and check errors idiomatically? What does wrapping an error accomplish?",
			ExpectedSignals: []string{"errors.Is", "errors.As", "%w verb", "sentinel errors"},
		},
		{
			ID:              "errors-design-3",
			SkillCategory:   "errors",
			Difficulty:      3,
			Prompt:          "A library you maintain needs to let callers distinguish retryable from permanent failures. Compare the design options.",
			ExpectedSignals: []string{"error types", "sentinel values", "behavior interfaces"},
		},
		{
			ID:              "storage-basics-2",
			SkillCategory:   "storage",
			Difficulty:      2,
			Prompt:          "What guarantees does a write-ahead log give a storage engine, and what is still lost on power failure?",
			ExpectedSignals: []string{"durability", "fsync", "checkpointing"},
		},
		{
			ID:              "storage-caching-3",
			SkillCategory:   "storage",
			Difficulty:      3,
			Prompt:          "You put a fast in-memory cache in front of a durable store. Walk through the consistency hazards and how you bound them.",
			ExpectedSignals: []string{"write-through", "staleness window", "invalidation"},
		},
		{
			ID:              "storage-tx-5",
			SkillCategory:   "storage",
			Difficulty:      5,
			Prompt:          "Explain how SQLite in WAL mode handles a writer concurrent with readers, and what SQLITE_BUSY means for application design.",
			ExpectedSignals: []string{"single writer", "snapshot reads", "busy timeout", "retry"},
		},
		{
			ID:              "systems-api-2",
			SkillCategory:   "systems",
			Difficulty:      2,
			Prompt:          "How should an HTTP API report the difference between a client mistake and a dependency outage? Map the cases to status codes.",
			ExpectedSignals: []string{"4xx vs 5xx", "503 for dependencies", "opaque internals"},
		},
		{
			ID:              "systems-idempotency-4",
			SkillCategory:   "systems",
			Difficulty:      4,
			Prompt:          "A client retries a state-changing request after a timeout. How do you make the operation safe to replay?",
			ExpectedSignals: []string{"idempotency keys", "dedupe by content", "at-most-once effects"},
		},
	}
}
