// Package pipeline provides a framework for executing run phases in sequence.
//
// The pipeline pattern is used to process a target application through
// multiple stages: adapter connection, exploration, persistence, and report
// generation. Each stage is implemented as a Step that receives the current
// run result and can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running explorations
// 4. It enables per-command pipelines: explore persists and reports, while a
//    dry run can stop after exploration
//
// The pipeline supports both single-target runs and batch processing with
// concurrency control using errgroup.
package pipeline
