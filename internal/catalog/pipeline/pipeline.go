// Package pipeline describes aggregation pipelines as typed stage values.
//
// A Pipeline renders to a mongo.Pipeline for execution by the server and can
// also be run in-process over bson.M documents, which is how the in-memory
// catalog store answers the same queries as MongoDB.
package pipeline

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stage is one step of a pipeline.
type Stage interface {
	// Render returns the stage as a single-key bson document, e.g. {$unwind: "$reviews"}.
	Render() bson.D
	// Validate reports malformed field paths or operators.
	Validate() error
	apply(docs []bson.M) ([]bson.M, error)
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// New builds a pipeline from the given stages.
func New(stages ...Stage) Pipeline { return Pipeline(stages) }

// Validate checks every stage in order.
func (p Pipeline) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("empty pipeline")
	}
	for i, s := range p {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return nil
}

// Mongo renders the pipeline for mongo.Collection.Aggregate.
func (p Pipeline) Mongo() mongo.Pipeline {
	out := make(mongo.Pipeline, 0, len(p))
	for _, s := range p {
		out = append(out, s.Render())
	}
	return out
}

// Run executes the pipeline in-process. The input slice is not modified.
func (p Pipeline) Run(docs []bson.M) ([]bson.M, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cur := docs
	for i, s := range p {
		next, err := s.apply(cur)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// ToDocument converts a value into the generic document form Run operates on.
func ToDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode converts a generic document back into a typed value using the
// struct's bson tags, the same way a cursor would.
func Decode(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}
