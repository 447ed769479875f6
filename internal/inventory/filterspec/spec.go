package filterspec

import (
	"regexp"

	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

const DefaultSortKey = "name"

// Config is the raw filtering section of a query configuration. Field
// values stay loosely typed: exclude entries are field names or nested
// maps, item filter conditions are regex strings or nested maps.
type Config struct {
	SortKey            string                   `mapstructure:"sort_key"`
	FieldIncludeFilter []string                 `mapstructure:"field_include_filter"`
	FieldExcludeFilter []interface{}            `mapstructure:"field_exclude_filter"`
	ItemExcludeFilter  []map[string]interface{} `mapstructure:"item_exclude_filter"`
}

// Spec is a compiled filter applied to every query result before it is
// written out.
type Spec struct {
	sortKey       string
	includeFields []string
	excludeFields []excludeField
	itemFilters   []itemFilter
}

type excludeField struct {
	name   string
	nested []excludeField
}

// itemFilter excludes an item when every condition in the set matches.
type itemFilter map[string]condition

type condition struct {
	re     *regexp.Regexp
	nested itemFilter
}

// Compile validates and compiles a filter configuration. Include and
// exclude field filters are mutually exclusive.
func Compile(cfg Config) (*Spec, error) {
	if len(cfg.FieldIncludeFilter) > 0 && len(cfg.FieldExcludeFilter) > 0 {
		return nil, apperrors.New(apperrors.CodeConfigValidation,
			"field_include_filter and field_exclude_filter are mutually exclusive")
	}
	s := &Spec{
		sortKey:       cfg.SortKey,
		includeFields: cfg.FieldIncludeFilter,
	}
	if s.sortKey == "" {
		s.sortKey = DefaultSortKey
	}
	var err error
	if s.excludeFields, err = compileExcludeFields(cfg.FieldExcludeFilter); err != nil {
		return nil, err
	}
	for _, raw := range cfg.ItemExcludeFilter {
		f, err := compileItemFilter(raw)
		if err != nil {
			return nil, err
		}
		s.itemFilters = append(s.itemFilters, f)
	}
	return s, nil
}

func compileExcludeFields(raw []interface{}) ([]excludeField, error) {
	var fields []excludeField
	for _, entry := range raw {
		switch t := entry.(type) {
		case string:
			fields = append(fields, excludeField{name: t})
		case map[string]interface{}:
			for name, nestedRaw := range t {
				nestedList, ok := nestedRaw.([]interface{})
				if !ok {
					return nil, apperrors.Newf(apperrors.CodeConfigValidation,
						"nested field_exclude_filter for %q must be a list", name)
				}
				nested, err := compileExcludeFields(nestedList)
				if err != nil {
					return nil, err
				}
				fields = append(fields, excludeField{name: name, nested: nested})
			}
		default:
			return nil, apperrors.Newf(apperrors.CodeConfigValidation,
				"field_exclude_filter entries must be strings or maps, got %T", entry)
		}
	}
	return fields, nil
}

func compileItemFilter(raw map[string]interface{}) (itemFilter, error) {
	f := make(itemFilter, len(raw))
	for field, condRaw := range raw {
		switch t := condRaw.(type) {
		case string:
			re, err := regexp.Compile(`\A(?:` + t + `)`)
			if err != nil {
				return nil, apperrors.Wrapf(err, apperrors.CodeConfigValidation,
					"invalid item_exclude_filter regex for field %q", field)
			}
			f[field] = condition{re: re}
		case map[string]interface{}:
			nested, err := compileItemFilter(t)
			if err != nil {
				return nil, err
			}
			f[field] = condition{nested: nested}
		default:
			return nil, apperrors.Newf(apperrors.CodeConfigValidation,
				"item_exclude_filter conditions must be strings or maps, got %T", condRaw)
		}
	}
	return f, nil
}

// Apply filters and sorts a sequence of result items in place and
// reports whether sorting happened (false means the sort key was absent
// from at least one item).
func (s *Spec) Apply(items *Node) bool {
	if items.Kind != KindSequence {
		return false
	}
	sorted := sortByKey(items.Seq, s.sortKey)
	for _, f := range s.itemFilters {
		kept := items.Seq[:0]
		for _, item := range items.Seq {
			if !matchItem(item, f) {
				kept = append(kept, item)
			}
		}
		items.Seq = kept
	}
	if len(s.excludeFields) > 0 {
		for _, item := range items.Seq {
			applyExclude(item, s.excludeFields)
		}
	} else if len(s.includeFields) > 0 {
		for _, item := range items.Seq {
			applyInclude(item, s.includeFields)
		}
	}
	return sorted
}

// matchItem reports whether every condition in the filter matches, in
// which case the item is dropped. Conditions against sequence fields
// prune matching elements instead and count as non-matching, so the
// pruned item survives.
func matchItem(item *Node, f itemFilter) bool {
	if item.Kind != KindMapping {
		return false
	}
	for field, cond := range f {
		child, ok := item.Map[field]
		if cond.re != nil {
			if !ok {
				child = &Node{Kind: KindScalar, Scalar: ""}
			}
			switch child.Kind {
			case KindSequence:
				kept := child.Seq[:0]
				for _, el := range child.Seq {
					s, isStr := el.Scalar.(string)
					if el.Kind == KindScalar && isStr && cond.re.MatchString(s) {
						continue
					}
					kept = append(kept, el)
				}
				child.Seq = kept
				return false
			case KindScalar:
				s, isStr := child.Scalar.(string)
				if !isStr {
					s = ""
				}
				if !cond.re.MatchString(s) {
					return false
				}
			default:
				return false
			}
			continue
		}
		// Nested condition.
		if !ok {
			return false
		}
		switch child.Kind {
		case KindMapping:
			return matchItem(child, cond.nested)
		case KindSequence:
			kept := child.Seq[:0]
			for _, el := range child.Seq {
				if !matchItem(el, cond.nested) {
					kept = append(kept, el)
				}
			}
			child.Seq = kept
			return false
		default:
			return false
		}
	}
	return true
}

func applyExclude(item *Node, fields []excludeField) {
	if item.Kind != KindMapping {
		return
	}
	for _, f := range fields {
		if len(f.nested) == 0 {
			delete(item.Map, f.name)
			continue
		}
		child, ok := item.Map[f.name]
		if !ok {
			continue
		}
		switch child.Kind {
		case KindMapping:
			applyExclude(child, f.nested)
		case KindSequence:
			for _, el := range child.Seq {
				applyExclude(el, f.nested)
			}
		}
	}
}

func applyInclude(item *Node, fields []string) {
	if item.Kind != KindMapping {
		return
	}
	for key := range item.Map {
		keep := false
		for _, f := range fields {
			if key == f {
				keep = true
				break
			}
		}
		if !keep {
			delete(item.Map, key)
		}
	}
}
