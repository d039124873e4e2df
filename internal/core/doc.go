/*
Core implements the tick-to-trade decision pipeline.

# Module
  - ingest context: applies market updates to the order book and
    publishes top-of-book snapshots through a latch
  - decision context: single goroutine advancing the strategy engine,
    risk pipeline, order lifecycle, fill matcher and position tracker
    one tick at a time

# Tick discipline

A tick is one atomic state advance of a context. Every component
computes its next state from the previous tick's committed snapshot;
commits become visible at the next tick's start. Inside a tick the
position read by the strategy and the risk pipeline is the pre-update
value, never a partially written one.

# Handoff

Data never crosses contexts by shared mutation. Top-of-book snapshots
cross through a double-buffered latch (last value wins), execution
reports and outbound orders cross through bounded queues (burst safe).
*/
package core
