package accounts

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

var queryable = map[Attribute]bool{
	AttrID:           true,
	AttrEmail:        true,
	AttrSessionToken: true,
	AttrResetToken:   true,
}

var mutable = map[Attribute]bool{
	AttrCredentialHash: true,
	AttrSessionToken:   true,
	AttrResetToken:     true,
}

// normalize checks that v has a type storable in attr and converts it to the
// driver value. Tokens accept string, *string or nil.
func normalize(attr Attribute, v any) (any, bool) {
	switch attr {
	case AttrID:
		switch id := v.(type) {
		case int64:
			return id, true
		case int:
			return int64(id), true
		}
	case AttrEmail:
		if s, ok := v.(string); ok {
			return s, true
		}
	case AttrCredentialHash:
		if b, ok := v.([]byte); ok && len(b) > 0 {
			return b, true
		}
	case AttrSessionToken, AttrResetToken:
		switch s := v.(type) {
		case nil:
			return nil, true
		case string:
			return s, true
		case *string:
			if s == nil {
				return nil, true
			}
			return *s, true
		}
	}
	return nil, false
}

type condition struct {
	attr  Attribute
	value any
}

// sortedConditions validates criteria and returns them in column order so
// the generated SQL is stable.
func (c Criteria) sortedConditions() ([]condition, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no criteria", common.ErrInvalidQuery)
	}
	out := make([]condition, 0, len(c))
	for attr, v := range c {
		if !queryable[attr] {
			return nil, fmt.Errorf("%w: unknown attribute %q", common.ErrInvalidQuery, attr)
		}
		nv, ok := normalize(attr, v)
		if !ok {
			return nil, fmt.Errorf("%w: bad value for %q", common.ErrInvalidQuery, attr)
		}
		out = append(out, condition{attr: attr, value: nv})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].attr < out[j].attr })
	return out, nil
}

func (f Fields) sortedAssignments() ([]condition, error) {
	out := make([]condition, 0, len(f))
	for attr, v := range f {
		if !mutable[attr] {
			return nil, fmt.Errorf("%w: %q is not a mutable attribute", common.ErrInvalidAttribute, attr)
		}
		nv, ok := normalize(attr, v)
		if !ok {
			return nil, fmt.Errorf("%w: bad value for %q", common.ErrInvalidAttribute, attr)
		}
		out = append(out, condition{attr: attr, value: nv})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].attr < out[j].attr })
	return out, nil
}
