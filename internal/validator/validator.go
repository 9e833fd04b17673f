// Package validator re-checks every generated query before execution.
//
// Generation is deterministic, so a validation failure indicates a planner
// or schema bug rather than bad input; the checks exist as defense in depth
// against generator defects and any future planning path that is less
// trustworthy. Validation is non-mutating: a plan passes through unchanged
// or the first violated check fails the whole plan.
package validator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftline/driftline/internal/plan"
	"github.com/driftline/driftline/internal/schema"
)

// ValidationError reports an unsafe or non-compliant query.
type ValidationError struct {
	Message   string
	QueryName string
	Details   string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("validation failed for %q: %s (%s)", e.QueryName, e.Message, e.Details)
	}
	return fmt.Sprintf("validation failed for %q: %s", e.QueryName, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// forbiddenKeywords are matched as whole tokens, case-insensitive.
var forbiddenKeywords = map[string]bool{
	"DROP": true, "DELETE": true, "TRUNCATE": true, "ALTER": true,
	"CREATE": true, "INSERT": true, "UPDATE": true, "EXEC": true,
	"EXECUTE": true, "GRANT": true, "REVOKE": true,
}

// aggregateFunctions are the allowed aggregate function names.
var aggregateFunctions = map[string]bool{
	"SUM": true, "COUNT": true, "AVG": true, "MIN": true, "MAX": true,
}

// Validate runs all checks against every query in the plan. The plan is
// returned unchanged on success. Each query fails fast on its first
// violated check.
//
// A failure here is logged at error level: the generator is deterministic,
// so a rejected plan means a generator or schema bug, not bad user input.
func Validate(p *plan.Plan, ctx *schema.Context) (*plan.Plan, error) {
	for _, q := range p.Queries {
		if err := validateQuery(q.SQL, q.Name, ctx); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				slog.Error("generated query failed validation",
					"query", ve.QueryName,
					"message", ve.Message,
					"details", ve.Details)
			}
			return nil, err
		}
	}
	return p, nil
}

func validateQuery(sql, name string, ctx *schema.Context) error {
	tokens := scan(sql)
	if err := checkForbiddenKeywords(tokens, name); err != nil {
		return err
	}
	if err := checkInjectionPatterns(tokens, name); err != nil {
		return err
	}
	if err := checkColumnReferences(tokens, name, ctx); err != nil {
		return err
	}
	if err := checkStructure(tokens, name); err != nil {
		return err
	}
	return checkAggregation(tokens, name)
}

// checkForbiddenKeywords rejects DDL/DML keywords as whole tokens. String
// literal contents never reach this check: the scanner classifies them
// separately, so a filter value of "DROP" does not trip it.
func checkForbiddenKeywords(tokens []token, name string) error {
	for _, t := range tokens {
		if t.kind != tokenWord {
			continue
		}
		upper := strings.ToUpper(t.text)
		if forbiddenKeywords[upper] {
			return &ValidationError{
				Message:   "forbidden SQL keyword",
				QueryName: name,
				Details:   fmt.Sprintf("keyword %s is not allowed in generated queries", upper),
			}
		}
	}
	return nil
}

// checkInjectionPatterns rejects statement chaining, trailing comments that
// hide further tokens, UNION, and nested SELECT.
func checkInjectionPatterns(tokens []token, name string) error {
	selects := 0
	for i, t := range tokens {
		switch t.kind {
		case tokenPunct:
			if t.text == ";" && anyCodeAfter(tokens[i+1:]) {
				return &ValidationError{
					Message:   "multiple statements",
					QueryName: name,
					Details:   "statement terminator followed by further tokens",
				}
			}
		case tokenComment:
			if anyCodeAfter(tokens[i+1:]) {
				return &ValidationError{
					Message:   "inline comment",
					QueryName: name,
					Details:   "comment followed by further tokens",
				}
			}
		case tokenWord:
			upper := strings.ToUpper(t.text)
			if upper == "UNION" {
				return &ValidationError{
					Message:   "UNION is not allowed",
					QueryName: name,
					Details:   "set operations are rejected to prevent data exfiltration",
				}
			}
			if upper == "SELECT" {
				selects++
				if selects > 1 {
					return &ValidationError{
						Message:   "nested SELECT",
						QueryName: name,
						Details:   "subqueries are not allowed",
					}
				}
			}
		}
	}
	return nil
}

func anyCodeAfter(tokens []token) bool {
	for _, t := range tokens {
		if t.kind != tokenComment {
			return true
		}
	}
	return false
}

// checkColumnReferences verifies every qualified table.column token against
// the schema context whitelist. Bare identifiers are aliases or keywords
// and are left to the structural checks; literal contents are excluded by
// the scanner.
func checkColumnReferences(tokens []token, name string, ctx *schema.Context) error {
	for _, t := range tokens {
		if t.kind != tokenWord || !strings.Contains(t.text, ".") {
			continue
		}
		if ctx.AllowsColumn(t.text) {
			continue
		}
		return &ValidationError{
			Message:   "column not in whitelist",
			QueryName: name,
			Details:   fmt.Sprintf("reference %q is not declared by the business view", t.text),
		}
	}
	return nil
}

// checkStructure verifies the statement begins with SELECT, has exactly one
// top-level FROM, and balances parentheses.
func checkStructure(tokens []token, name string) error {
	first := firstCode(tokens)
	if first == nil || first.kind != tokenWord || !strings.EqualFold(first.text, "SELECT") {
		return &ValidationError{
			Message:   "statement must begin with SELECT",
			QueryName: name,
		}
	}

	depth := 0
	topLevelFrom := 0
	for _, t := range tokens {
		switch {
		case t.kind == tokenPunct && t.text == "(":
			depth++
		case t.kind == tokenPunct && t.text == ")":
			depth--
			if depth < 0 {
				return &ValidationError{
					Message:   "unbalanced parentheses",
					QueryName: name,
				}
			}
		case t.kind == tokenWord && depth == 0 && strings.EqualFold(t.text, "FROM"):
			topLevelFrom++
		}
	}
	if depth != 0 {
		return &ValidationError{
			Message:   "unbalanced parentheses",
			QueryName: name,
		}
	}
	if topLevelFrom != 1 {
		return &ValidationError{
			Message:   "statement must contain exactly one top-level FROM",
			QueryName: name,
			Details:   fmt.Sprintf("found %d", topLevelFrom),
		}
	}
	return nil
}

func firstCode(tokens []token) *token {
	for i := range tokens {
		if tokens[i].kind != tokenComment {
			return &tokens[i]
		}
	}
	return nil
}

// checkAggregation enforces SELECT/GROUP BY consistency: with GROUP BY
// present, every non-aggregated selected expression must appear in the
// GROUP BY list and vice versa; without GROUP BY, a query selecting any
// aggregate must select only aggregates.
func checkAggregation(tokens []token, name string) error {
	selectItems := splitSelectList(tokens)
	groupExprs := groupByList(tokens)

	var plain, aggregated []string
	for _, item := range selectItems {
		if isAggregateExpr(item) {
			aggregated = append(aggregated, exprKey(item))
		} else {
			plain = append(plain, exprKey(item))
		}
	}

	if groupExprs == nil {
		if len(aggregated) > 0 && len(plain) > 0 {
			return &ValidationError{
				Message:   "mixed aggregate and plain columns without GROUP BY",
				QueryName: name,
				Details:   fmt.Sprintf("non-aggregated: %s", strings.Join(plain, ", ")),
			}
		}
		return nil
	}

	grouped := make(map[string]bool, len(groupExprs))
	for _, g := range groupExprs {
		grouped[g] = true
	}
	for _, col := range plain {
		if !grouped[col] {
			return &ValidationError{
				Message:   "selected column missing from GROUP BY",
				QueryName: name,
				Details:   col,
			}
		}
	}
	selected := make(map[string]bool, len(plain))
	for _, col := range plain {
		selected[col] = true
	}
	for _, g := range groupExprs {
		if !selected[g] {
			return &ValidationError{
				Message:   "GROUP BY column missing from SELECT",
				QueryName: name,
				Details:   g,
			}
		}
	}
	return nil
}

// splitSelectList returns the select-list expressions between SELECT and
// the top-level FROM, split on top-level commas. Each expression is a
// token slice.
func splitSelectList(tokens []token) [][]token {
	start := -1
	depth := 0
	var items [][]token
	var current []token
	for _, t := range tokens {
		if t.kind == tokenComment {
			continue
		}
		if start < 0 {
			if t.kind == tokenWord && strings.EqualFold(t.text, "SELECT") {
				start = 0
			}
			continue
		}
		switch {
		case t.kind == tokenPunct && t.text == "(":
			depth++
			current = append(current, t)
		case t.kind == tokenPunct && t.text == ")":
			depth--
			current = append(current, t)
		case t.kind == tokenPunct && t.text == "," && depth == 0:
			items = append(items, current)
			current = nil
		case t.kind == tokenWord && depth == 0 && strings.EqualFold(t.text, "FROM"):
			if len(current) > 0 {
				items = append(items, current)
			}
			return items
		default:
			current = append(current, t)
		}
	}
	if len(current) > 0 {
		items = append(items, current)
	}
	return items
}

// groupByList returns the GROUP BY expressions as canonical keys, or nil
// when the query has no GROUP BY.
func groupByList(tokens []token) []string {
	idx := -1
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].kind == tokenWord && strings.EqualFold(tokens[i].text, "GROUP") &&
			tokens[i+1].kind == tokenWord && strings.EqualFold(tokens[i+1].text, "BY") {
			idx = i + 2
			break
		}
	}
	if idx < 0 {
		return nil
	}

	exprs := []string{}
	var current []token
	flush := func() {
		if len(current) > 0 {
			exprs = append(exprs, exprKey(current))
			current = nil
		}
	}
	for _, t := range tokens[idx:] {
		if t.kind == tokenComment {
			continue
		}
		if t.kind == tokenWord {
			upper := strings.ToUpper(t.text)
			if upper == "ORDER" || upper == "HAVING" || upper == "LIMIT" {
				break
			}
		}
		if t.kind == tokenPunct && t.text == "," {
			flush()
			continue
		}
		if t.kind == tokenPunct && t.text == ";" {
			break
		}
		current = append(current, t)
	}
	flush()
	return exprs
}

// isAggregateExpr reports whether the expression begins with an allowed
// aggregate function call.
func isAggregateExpr(expr []token) bool {
	if len(expr) < 2 {
		return false
	}
	if expr[0].kind != tokenWord || !aggregateFunctions[strings.ToUpper(expr[0].text)] {
		return false
	}
	return expr[1].kind == tokenPunct && expr[1].text == "("
}

// exprKey canonicalizes an expression for set comparison: the AS alias is
// stripped, remaining tokens joined without spacing.
func exprKey(expr []token) string {
	var sb strings.Builder
	for i := 0; i < len(expr); i++ {
		t := expr[i]
		if t.kind == tokenWord && strings.EqualFold(t.text, "AS") {
			break // alias and everything after it
		}
		if t.kind == tokenString {
			sb.WriteString("'" + t.text + "'")
			continue
		}
		sb.WriteString(t.text)
	}
	return sb.String()
}
