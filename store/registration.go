// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"log/slog"

	"github.com/AleutianAI/reactivestore/store/effects"
	"github.com/AleutianAI/reactivestore/store/expr"
)

// registerProperty wires up name's effects in order: computed forces
// read-only, read-only gets its guard effect (and, for a non-computed
// property, would carry an internal setter — see SetInternal), and an
// observer gets a simple change callback.
func (s *Store) registerProperty(name string, p Property) error {
	if p.Computed != "" {
		p.ReadOnly = true
	}

	if p.Computed != "" && !s.registry.HasReadOnly(name) {
		if err := s.registerComputed(name, p.Computed); err != nil {
			return err
		}
	}

	if p.ReadOnly && !s.registry.HasReadOnly(name) {
		s.registry.AddEffect(name, effects.ReadOnly, effects.Effect{})
	}

	if p.Observer != "" {
		s.registerObserver(name, p.Observer)
	}

	return nil
}

// registerComputed parses expression and registers a COMPUTE effect on
// every non-literal argument's root property, plus on the method name
// itself. A signature whose arguments are all literals has no changing
// root property to bind to, so it is evaluated once here to establish
// its initial value.
func (s *Store) registerComputed(target, expression string) error {
	sig, err := expr.Parse(expression)
	if err != nil {
		return err
	}

	fn, ok := s.methods[sig.MethodName]
	if !ok {
		s.logger.Warn("computed method not registered", slog.String("property", target), slog.String("method", sig.MethodName))
	}

	closure := s.computeClosure(target, sig, fn)

	for _, a := range sig.Args {
		if a.IsLiteral() {
			continue
		}
		s.registry.AddEffect(a.RootProperty, effects.Compute, effects.Effect{
			Info: &effects.Info{MethodName: sig.MethodName, ResultTarget: target},
			Fn:   closure,
		})
	}
	s.registry.AddEffect(sig.MethodName, effects.Compute, effects.Effect{
		Info: &effects.Info{MethodName: sig.MethodName, ResultTarget: target},
		Fn:   closure,
	})

	if sig.Static {
		closure(effects.InvokeArgs{})
	}

	return nil
}

// computeClosure returns the effect callback for a computed property:
// marshal sig's arguments from live data, call fn, and route the result
// through change detection if target itself carries any effect (e.g. an
// observer watching the computed value), or assign it directly otherwise.
func (s *Store) computeClosure(target string, sig *expr.Signature, fn any) effects.Fn {
	return func(trigger effects.InvokeArgs) {
		var result any
		if fn != nil {
			args := make([]any, len(sig.Args))
			for i, a := range sig.Args {
				args[i] = marshalArg(s.buffer.Data, a, trigger)
			}
			r, err := callMethod(fn, args)
			if err != nil {
				s.logger.Warn("computed method invocation failed",
					slog.String("property", target), slog.String("method", sig.MethodName), slog.Any("error", err))
				return
			}
			result = r
		}

		if s.registry.HasEffect(target, effects.Any) {
			s.buffer.SetPending(target, result)
		} else {
			s.buffer.Data[target] = result
		}
	}
}

// registerObserver registers a simple observer: on change, methodName is
// invoked with (newValue, oldValue, path). A missing method is logged as
// a diagnostic rather than rejected at construction time; the method is
// looked up on each invocation, and the observer is skipped while it is
// missing.
func (s *Store) registerObserver(property, methodName string) {
	if _, ok := s.methods[methodName]; !ok {
		s.logger.Warn("observer method not registered", slog.String("property", property), slog.String("method", methodName))
	}

	s.registry.AddEffect(property, effects.Observe, effects.Effect{
		Info: &effects.Info{MethodName: methodName},
		Fn: func(a effects.InvokeArgs) {
			fn := s.methods[methodName]
			if fn == nil {
				return
			}
			if _, err := callMethod(fn, []any{a.NewValue, a.OldValue, a.TriggerPath}); err != nil {
				s.logger.Warn("observer invocation failed",
					slog.String("property", property), slog.String("method", methodName), slog.Any("error", err))
			}
		},
	})
}

// SetInternal writes value to a read-only property through its internal
// setter, bypassing the public read-only guard. It is the Go realization
// of the source engine's per-property "_set<Name>" method: rather than a
// dynamically named method per property, callers name the property once.
// It returns ErrUnknownProperty when name has no registered effect and
// no value in the data tree; a declared plain property that has never
// been set therefore also gets ErrUnknownProperty.
func (s *Store) SetInternal(name string, value any) error {
	if !s.registry.HasEffect(name, effects.Any) && s.buffer.Data[name] == nil {
		return ErrUnknownProperty
	}
	if s.buffer.SetPending(name, value) {
		s.scheduleFlush()
	}
	return nil
}
