package executor

import (
	language "github.com/hanpama/contentgraph/internal/language"
	schema "github.com/hanpama/contentgraph/internal/schema"
)

// collectedField is one response key and every selection merged into it.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// fieldGroups keeps response keys in the order they first appear in the
// document.
type fieldGroups struct {
	fields []collectedField
	index  map[string]int
}

func (g *fieldGroups) add(sel *language.Field) {
	key := sel.Alias
	if key == "" {
		key = sel.Name
	}
	if i, ok := g.index[key]; ok {
		g.fields[i].Fields = append(g.fields[i].Fields, sel)
		return
	}
	g.index[key] = len(g.fields)
	g.fields = append(g.fields, collectedField{ResponseName: key, Fields: []*language.Field{sel}})
}

func (g *fieldGroups) orderedFields() []collectedField { return g.fields }

// collectFields flattens fragments and applies @skip/@include for one object
// type. Every type in the schema is concrete, so a fragment applies only when
// its condition is empty or names objectType.
func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) *fieldGroups {
	c := fieldCollector{
		state:      state,
		objectType: objectType,
		groups:     &fieldGroups{index: make(map[string]int)},
		visited:    make(map[string]bool),
	}
	c.collect(selectionSet)
	return c.groups
}

type fieldCollector struct {
	state      *executionState
	objectType *schema.Type
	groups     *fieldGroups
	visited    map[string]bool
}

func (c *fieldCollector) collect(selectionSet language.SelectionSet) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if c.included(sel.Directives) {
				c.groups.add(sel)
			}
		case *language.InlineFragment:
			if c.included(sel.Directives) && c.applies(sel.TypeCondition) {
				c.collect(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !c.included(sel.Directives) || c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true
			def := c.state.document.Fragments.ForName(sel.Name)
			if def == nil || !c.applies(def.TypeCondition) || !c.included(def.Directives) {
				continue
			}
			c.collect(def.SelectionSet)
		}
	}
}

func (c *fieldCollector) applies(typeCondition string) bool {
	return typeCondition == "" || typeCondition == c.objectType.Name
}

// included evaluates @skip and @include. An argument that is missing or not
// a boolean leaves the selection in.
func (c *fieldCollector) included(directives language.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, ok := c.directiveFlag(d); ok && skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, ok := c.directiveFlag(d); ok && !include {
			return false
		}
	}
	return true
}

func (c *fieldCollector) directiveFlag(d *language.Directive) (value, ok bool) {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	value, ok = valueFromASTWithVars(arg.Value, c.state.variableValues).(bool)
	return value, ok
}
