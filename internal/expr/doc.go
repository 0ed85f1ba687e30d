// Package expr builds engine rules from small composable expressions instead
// of hand-written evaluators.
//
// An Expr evaluates against a rule's binding context and reports the
// variables it reads. A Rule built from a condition Expr and an Action
// declares those variables for itself:
//   - every variable the condition or the action reads is required
//   - a variable the action only writes is optional
//
// Example:
//
//	r, err := expr.NewRule("door-alarm",
//	    expr.And(expr.Eq(expr.Ref("door"), expr.Lit("open")), expr.Ref("armed")),
//	    expr.Assign("RESULT", expr.Lit("alarm")),
//	)
package expr
