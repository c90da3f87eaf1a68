package opi

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/universal-brc20/indexer/common/errs"
)

// Registry maps operation tags to their processors. Registration happens once
// at startup; a duplicate tag is a configuration defect and fails startup.
type Registry struct {
	processors map[string]Processor
}

func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[string]Processor),
	}
}

// Register adds a processor under its tag. Tags are case-insensitive.
func (r *Registry) Register(processor Processor) error {
	tag := strings.ToLower(processor.OpTag())
	if tag == "" {
		return errors.Wrap(errs.InvalidArgument, "processor has empty op tag")
	}
	if _, exists := r.processors[tag]; exists {
		return errors.Wrapf(errs.Duplicate, "processor already registered for op tag %q", tag)
	}
	r.processors[tag] = processor
	return nil
}

// Route returns the processor for an op tag, or nil for unknown tags.
func (r *Registry) Route(opTag string) Processor {
	return r.processors[strings.ToLower(opTag)]
}

// Tags returns the registered op tags in sorted order.
func (r *Registry) Tags() []string {
	tags := lo.Keys(r.processors)
	slices.Sort(tags)
	return tags
}
