package monitor

import (
	"errors"
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

const piValue = math.Pi

var numpyModule = &starlarkstruct.Module{Name: "numpy", Members: starlark.StringDict{
	"pi":       starlark.Float(math.Pi),
	"e":        starlark.Float(math.E),
	"sin":      elementwise("sin", math.Sin),
	"cos":      elementwise("cos", math.Cos),
	"tan":      elementwise("tan", math.Tan),
	"arcsin":   elementwise("arcsin", math.Asin),
	"arccos":   elementwise("arccos", math.Acos),
	"arctan":   elementwise("arctan", math.Atan),
	"sqrt":     elementwise("sqrt", math.Sqrt),
	"exp":      elementwise("exp", math.Exp),
	"log":      elementwise("log", math.Log),
	"abs":      elementwise("abs", math.Abs),
	"array":    starlark.NewBuiltin("array", array),
	"arange":   starlark.NewBuiltin("arange", arange),
	"linspace": starlark.NewBuiltin("linspace", linspace),
	"zeros":    starlark.NewBuiltin("zeros", filled(0)),
	"ones":     starlark.NewBuiltin("ones", filled(1)),
}}

var mathModule = &starlarkstruct.Module{Name: "math", Members: starlark.StringDict{
	"pi":    starlark.Float(math.Pi),
	"e":     starlark.Float(math.E),
	"tau":   starlark.Float(2 * math.Pi),
	"sin":   scalar("sin", math.Sin),
	"cos":   scalar("cos", math.Cos),
	"tan":   scalar("tan", math.Tan),
	"asin":  scalar("asin", math.Asin),
	"acos":  scalar("acos", math.Acos),
	"atan":  scalar("atan", math.Atan),
	"sqrt":  scalar("sqrt", math.Sqrt),
	"exp":   scalar("exp", math.Exp),
	"log":   scalar("log", math.Log),
	"floor": scalar("floor", math.Floor),
	"ceil":  scalar("ceil", math.Ceil),
	"atan2": starlark.NewBuiltin("atan2", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var y, x starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &y, &x); err != nil {
			return nil, err
		}
		fy, err := toFloat(y)
		if err != nil {
			return nil, err
		}
		fx, err := toFloat(x)
		if err != nil {
			return nil, err
		}
		return starlark.Float(math.Atan2(fy, fx)), nil
	}),
}}

func scalar(name string, f func(float64) float64) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
			return nil, err
		}
		v, err := toFloat(x)
		if err != nil {
			return nil, err
		}
		return starlark.Float(f(v)), nil
	})
}

// elementwise maps f over a list, or applies it to a number.
func elementwise(name string, f func(float64) float64) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var x starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
			return nil, err
		}
		if iterable, ok := x.(starlark.Iterable); ok {
			var out []starlark.Value
			for v := range starlarkValues(iterable) {
				fv, err := toFloat(v)
				if err != nil {
					return nil, err
				}
				out = append(out, starlark.Float(f(fv)))
			}
			return starlark.NewList(out), nil
		}
		v, err := toFloat(x)
		if err != nil {
			return nil, err
		}
		return starlark.Float(f(v)), nil
	})
}

// array copies its argument into a list; arrays are lists here.
func array(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	var requiresGrad bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "object", &x, "requires_grad?", &requiresGrad); err != nil {
		return nil, err
	}
	iterable, ok := x.(starlark.Iterable)
	if !ok {
		return x, nil
	}
	var out []starlark.Value
	for v := range starlarkValues(iterable) {
		out = append(out, v)
	}
	return starlark.NewList(out), nil
}

func floats(name string, args starlark.Tuple) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[i] = f
	}
	return out, nil
}

func arange(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 || len(args) < 1 || len(args) > 3 {
		return nil, errors.New("TypeError: arange() takes 1 to 3 positional arguments")
	}
	allInts := true
	for _, a := range args {
		if _, ok := a.(starlark.Int); !ok {
			allInts = false
		}
	}
	xs, err := floats(b.Name(), args)
	if err != nil {
		return nil, err
	}
	start, stop, step := 0.0, xs[0], 1.0
	if len(xs) > 1 {
		start, stop = xs[0], xs[1]
	}
	if len(xs) > 2 {
		step = xs[2]
	}
	if step == 0 {
		return nil, errors.New("ZeroDivisionError: arange() step must not be zero")
	}
	n := int(math.Ceil((stop - start) / step))
	if n > 1<<20 {
		return nil, errors.New("ValueError: arange() result is too large")
	}
	out := make([]starlark.Value, 0, max(n, 0))
	for i := 0; i < n; i++ {
		v := start + float64(i)*step
		if allInts {
			out = append(out, starlark.MakeInt(int(v)))
		} else {
			out = append(out, starlark.Float(v))
		}
	}
	return starlark.NewList(out), nil
}

func linspace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, stop starlark.Value
	num := 50
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop, "num?", &num); err != nil {
		return nil, err
	}
	xs, err := floats(b.Name(), starlark.Tuple{start, stop})
	if err != nil {
		return nil, err
	}
	if num < 0 || num > 1<<20 {
		return nil, errors.New("ValueError: linspace() num out of range")
	}
	out := make([]starlark.Value, num)
	for i := range out {
		if num == 1 {
			out[i] = starlark.Float(xs[0])
			continue
		}
		out[i] = starlark.Float(xs[0] + (xs[1]-xs[0])*float64(i)/float64(num-1))
	}
	return starlark.NewList(out), nil
}

func filled(v float64) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var n int
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
			return nil, err
		}
		if n < 0 || n > 1<<20 {
			return nil, fmt.Errorf("ValueError: %s() size out of range", b.Name())
		}
		out := make([]starlark.Value, n)
		for i := range out {
			out[i] = starlark.Float(v)
		}
		return starlark.NewList(out), nil
	}
}

// builtins are the Python builtins Starlark's universe lacks.
func builtins() starlark.StringDict {
	return starlark.StringDict{
		"sum": starlark.NewBuiltin("sum", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var xs starlark.Iterable
			var total starlark.Value = starlark.MakeInt(0)
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &xs, "start?", &total); err != nil {
				return nil, err
			}
			var err error
			for v := range starlarkValues(xs) {
				if total, err = starlark.Binary(syntax.PLUS, total, v); err != nil {
					return nil, err
				}
			}
			return total, nil
		}),
		"pow": starlark.NewBuiltin("pow", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var x, y starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
				return nil, err
			}
			xi, xok := x.(starlark.Int)
			yi, yok := y.(starlark.Int)
			if xok && yok && yi.Sign() >= 0 {
				n, ok := yi.Int64()
				if ok && n <= 1024 {
					result := starlark.MakeInt(1)
					for range n {
						v, err := starlark.Binary(syntax.STAR, result, xi)
						if err != nil {
							return nil, err
						}
						result = v.(starlark.Int)
					}
					return result, nil
				}
			}
			fs, err := floats(b.Name(), starlark.Tuple{x, y})
			if err != nil {
				return nil, err
			}
			return starlark.Float(math.Pow(fs[0], fs[1])), nil
		}),
		"round": starlark.NewBuiltin("round", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var x starlark.Value
			var ndigits starlark.Value = starlark.None
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x, &ndigits); err != nil {
				return nil, err
			}
			f, err := toFloat(x)
			if err != nil {
				return nil, err
			}
			if ndigits == starlark.None {
				return starlark.MakeInt64(int64(math.RoundToEven(f))), nil
			}
			d, err := starlark.AsInt32(ndigits)
			if err != nil {
				return nil, err
			}
			p := math.Pow(10, float64(d))
			return starlark.Float(math.RoundToEven(f*p) / p), nil
		}),
	}
}
