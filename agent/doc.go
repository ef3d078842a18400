// Package agent implements tool-calling chat agents on top of the kernel. A
// ChatAgent drives a model turn loop: it sends the thread history plus the
// kernel's tool declarations to a chat model, executes any requested function
// calls through the kernel (in parallel, with panic isolation), feeds results
// back, and repeats until the model produces a final answer or the iteration
// budget is exhausted.
//
// Conversations are held in Threads, thin handles over a core.SessionStore,
// so agents can resume across process restarts when a durable store is
// configured. History reducers keep long conversations inside the model's
// context window by truncation or summarization.
package agent
