// Package coretools provides the built-in local tools that are always
// available, with or without a remote tool server.
package coretools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dajeong/miso/pkg/toolset"
)

// ErrDivisionByZero is returned by the divide tool when the divisor is zero.
var ErrDivisionByZero = errors.New("division by zero")

// Descriptors returns the built-in local tools in registration order.
func Descriptors() []toolset.Descriptor {
	return []toolset.Descriptor{
		currentDateTool(),
		addTool(),
		subtractTool(),
		multiplyTool(),
		divideTool(),
	}
}

func currentDateTool() toolset.Descriptor {
	return toolset.Descriptor{
		Name:        "current_date",
		Description: "Return today's date in YYYY-MM-DD format.",
		Origin:      toolset.OriginLocal,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return time.Now().Format("2006-01-02"), nil
		},
	}
}

func addTool() toolset.Descriptor {
	return toolset.Descriptor{
		Name:        "add",
		Description: "Add two numbers.",
		Origin:      toolset.OriginLocal,
		Parameters:  operandParameters(),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a, b, err := operands(args)
			if err != nil {
				return nil, err
			}
			return a + b, nil
		},
	}
}

func subtractTool() toolset.Descriptor {
	return toolset.Descriptor{
		Name:        "subtract",
		Description: "Subtract the second number from the first.",
		Origin:      toolset.OriginLocal,
		Parameters:  operandParameters(),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a, b, err := operands(args)
			if err != nil {
				return nil, err
			}
			return a - b, nil
		},
	}
}

func multiplyTool() toolset.Descriptor {
	return toolset.Descriptor{
		Name:        "multiply",
		Description: "Multiply two numbers.",
		Origin:      toolset.OriginLocal,
		Parameters:  operandParameters(),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a, b, err := operands(args)
			if err != nil {
				return nil, err
			}
			return a * b, nil
		},
	}
}

func divideTool() toolset.Descriptor {
	return toolset.Descriptor{
		Name:        "divide",
		Description: "Divide the first number by the second.",
		Origin:      toolset.OriginLocal,
		Parameters:  operandParameters(),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a, b, err := operands(args)
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return nil, ErrDivisionByZero
			}
			return a / b, nil
		},
	}
}

func operandParameters() []toolset.Parameter {
	return []toolset.Parameter{
		{Name: "a", Type: "number", Description: "First operand", Required: true},
		{Name: "b", Type: "number", Description: "Second operand", Required: true},
	}
}

func operands(args map[string]interface{}) (float64, float64, error) {
	a, err := toNumber(args["a"])
	if err != nil {
		return 0, 0, fmt.Errorf("parameter a: %w", err)
	}
	b, err := toNumber(args["b"])
	if err != nil {
		return 0, 0, fmt.Errorf("parameter b: %w", err)
	}
	return a, b, nil
}

func toNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

// FormatNumber renders a numeric result without a fractional part when the
// value is integral, so "2 + 3" reads as 5 rather than 5.000000.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
