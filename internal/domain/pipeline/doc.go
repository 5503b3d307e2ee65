// Package pipeline contains the domain model of the Unleashed → Roar sync
// pipeline: the queued work envelope, the staged source record, the sync task
// lifecycle, the persisted cross-system identifier mapping, and the capability
// interfaces (queue, repositories, credential store) the application layer
// depends on.
package pipeline
