// Package alerts evaluates flagging rules over account snapshots.
// Rules are CEL expressions so tenants can tune when the dashboard
// highlights an account without a code change.
package alerts

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
)

// Default expressions, matching the built-in account flags.
const (
	DefaultStockRule = "min_quantity > 0.0 && quantity < min_quantity"
	DefaultCashRule  = "balance < 0.0"
)

// RuleSet holds compiled flagging rules for both ledgers.
type RuleSet struct {
	stockProgram cel.Program
	cashProgram  cel.Program
}

// NewRuleSet compiles the given expressions. Empty strings fall back to
// the defaults. Expressions must evaluate to bool.
func NewRuleSet(stockExpr, cashExpr string) (*RuleSet, error) {
	if stockExpr == "" {
		stockExpr = DefaultStockRule
	}
	if cashExpr == "" {
		cashExpr = DefaultCashRule
	}

	stockEnv, err := cel.NewEnv(
		cel.Variable("quantity", cel.DoubleType),
		cel.Variable("average_cost", cel.DoubleType),
		cel.Variable("min_quantity", cel.DoubleType),
	)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("build stock rule environment: %w", err))
	}
	stockProgram, err := compile(stockEnv, stockExpr)
	if err != nil {
		return nil, err
	}

	cashEnv, err := cel.NewEnv(
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("active", cel.BoolType),
	)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("build cash rule environment: %w", err))
	}
	cashProgram, err := compile(cashEnv, cashExpr)
	if err != nil {
		return nil, err
	}

	return &RuleSet{
		stockProgram: stockProgram,
		cashProgram:  cashProgram,
	}, nil
}

func compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewValidation("invalid flag rule").
			WithDetail("expression", expr).
			WithDetail("error", issues.Err().Error())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, apperror.NewValidation("flag rule must evaluate to bool").
			WithDetail("expression", expr)
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("compile flag rule: %w", err))
	}
	return program, nil
}

// FlagStock reports whether the stock account matches the rule.
func (r *RuleSet) FlagStock(account entity.StockAccount) (bool, error) {
	out, _, err := r.stockProgram.Eval(map[string]any{
		"quantity":     account.Quantity.InexactFloat64(),
		"average_cost": account.AverageCost.InexactFloat64(),
		"min_quantity": account.MinQuantity.InexactFloat64(),
	})
	if err != nil {
		return false, apperror.NewInternal(fmt.Errorf("evaluate stock rule: %w", err))
	}
	flagged, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewInternal(fmt.Errorf("stock rule returned %T, want bool", out.Value()))
	}
	return flagged, nil
}

// FlagCash reports whether the cash account matches the rule.
func (r *RuleSet) FlagCash(account entity.CashAccount) (bool, error) {
	out, _, err := r.cashProgram.Eval(map[string]any{
		"balance": account.Balance.InexactFloat64(),
		"active":  account.Active,
	})
	if err != nil {
		return false, apperror.NewInternal(fmt.Errorf("evaluate cash rule: %w", err))
	}
	flagged, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewInternal(fmt.Errorf("cash rule returned %T, want bool", out.Value()))
	}
	return flagged, nil
}
