// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"fmt"
	"reflect"

	"github.com/AleutianAI/reactivestore/store/effects"
	"github.com/AleutianAI/reactivestore/store/expr"
	"github.com/AleutianAI/reactivestore/store/path"
)

// WildcardArg is delivered in place of a plain value for a wildcard
// (".*"-suffixed) computed/observer argument: the concrete path that
// changed beneath the wildcard's base, its value, and the base itself.
type WildcardArg struct {
	Path  string
	Value any
	Base  string
}

// marshalArg resolves one parsed argument against live data: literals
// pass their parsed value through unchanged, wildcard arguments deliver a
// WildcardArg naming the concrete descendant path that fired this
// invocation (falling back to the wildcard's own base when the firing
// trigger did not land under this particular arg), and everything else
// is a plain path read.
func marshalArg(data map[string]any, a expr.Arg, trigger effects.InvokeArgs) any {
	switch {
	case a.IsLiteral():
		return a.LiteralValue
	case a.Wildcard():
		p, v := a.Name, path.Get(data, a.Name, nil)
		if trigger.TriggerPath != "" && path.IsDescendant(a.Name, trigger.TriggerPath) {
			p, v = trigger.TriggerPath, trigger.NewValue
		}
		return WildcardArg{Path: p, Value: v, Base: a.Name}
	default:
		return path.Get(data, a.Name, nil)
	}
}

// callMethod invokes fn (a func value from Config.Methods) with args,
// coercing each argument to the parameter type reflection reports so
// that, e.g., a float64 read from data satisfies an int parameter.
// Go has no string-keyed dynamic dispatch on arbitrary receivers, so
// reflection is the mechanism that realizes a signature string such as
// "fn(a, b.c.*)" resolving to a live call.
func callMethod(fn any, args []any) (any, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("store: method value is not a function")
	}
	t := v.Type()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		want := paramType(t, i)
		in[i] = coerceArg(a, want)
	}

	out := v.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func paramType(t reflect.Type, i int) reflect.Type {
	n := t.NumIn()
	if t.IsVariadic() && i >= n-1 {
		return t.In(n - 1).Elem()
	}
	if i < n {
		return t.In(i)
	}
	return reflect.TypeOf((*any)(nil)).Elem()
}

func coerceArg(a any, want reflect.Type) reflect.Value {
	if a == nil {
		return reflect.Zero(want)
	}
	av := reflect.ValueOf(a)
	if want.Kind() == reflect.Interface {
		return av
	}
	if av.Type().AssignableTo(want) {
		return av
	}
	if av.Type().ConvertibleTo(want) {
		return av.Convert(want)
	}
	return av
}
