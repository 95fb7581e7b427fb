package transform

import (
	"fmt"

	"github.com/Sternrassler/odata-export/pkg/dataset"
	"github.com/rs/zerolog/log"
)

// Source resolves datasets referenced by Join operations.
type Source interface {
	Get(name string) (*dataset.Dataset, error)
}

// Apply runs ops in order against a copy of base and returns the result.
// base is never modified.
func Apply(base *dataset.Dataset, ops []Op, src Source) (*dataset.Dataset, error) {
	work := base.Clone()

	for i, op := range ops {
		var err error
		switch o := op.(type) {
		case Rename:
			work.RenameColumn(o.From, o.To)
		case Cast:
			err = applyCast(work, o)
		case Join:
			work, err = applyJoin(work, o, src)
		default:
			err = fmt.Errorf("%w: step %d (%T)", ErrUnknownOp, i, op)
		}
		if err != nil {
			return nil, fmt.Errorf("transform step %d: %w", i, err)
		}

		log.Debug().
			Int("step", i).
			Str("op", op.Describe()).
			Int("rows", work.Len()).
			Int("columns", len(work.Columns)).
			Msg("Applied transform")
	}

	return work, nil
}
