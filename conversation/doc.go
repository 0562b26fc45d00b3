// Package conversation orchestrates one chat turn end-to-end: record the
// incoming message, reflect if due, retrieve relevant memories, assemble the
// prompt, invoke the model and record the response. It also owns the rolling
// transcript buffer and the budget-aware prompt assembler. One Manager wraps
// one memory stream; turns on the same Manager are serialized, distinct
// Managers are fully independent.
package conversation
