package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses a query document without validating it.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL. The returned schema includes the
// gqlparser prelude (built-in scalars and directives).
func LoadSchema(name, source string) (*Schema, error) {
	return gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
}

// LoadQuery parses source and validates it against s. All syntax and
// validation errors are returned together.
func LoadQuery(s *Schema, source string) (*QueryDocument, ErrorList) {
	doc, errs := gqlparser.LoadQuery(s, source)
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// AsErrorList normalizes any parse error into a located error list.
func AsErrorList(err error) ErrorList {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *gqlerror.Error:
		return ErrorList{e}
	case gqlerror.List:
		return e
	}
	return ErrorList{gqlerror.Wrap(err)}
}
