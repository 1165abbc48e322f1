// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import "github.com/AleutianAI/reactivestore/store/path"

// arrayAt resolves rawPath to the *[]any backing an array property,
// along with its normalized path. It returns a nil slice pointer if
// rawPath does not currently hold an array.
func (s *Store) arrayAt(rawPath any) (*[]any, string) {
	var norm string
	v := path.Get(s.buffer.Data, path.Normalize(rawPath), &norm)
	arr, _ := v.(*[]any)
	return arr, norm
}

// emitSplice sends rec through NotifySplices for norm.
func (s *Store) emitSplice(norm string, rec SpliceRecord) {
	s.NotifySplices(norm, []SpliceRecord{rec})
}

// Push appends items to the array at path and returns its new length. A
// path that does not hold an array is a no-op returning 0.
func (s *Store) Push(rawPath any, items ...any) int {
	arr, norm := s.arrayAt(rawPath)
	if arr == nil || len(items) == 0 {
		if arr != nil {
			return len(*arr)
		}
		return 0
	}
	idx := len(*arr)
	*arr = append(*arr, items...)
	s.emitSplice(norm, SpliceRecord{Index: idx, AddedCount: len(items), Object: *arr, Type: "splice"})
	return len(*arr)
}

// Pop removes and returns the last element of the array at path, or nil
// if the array is empty or the path does not hold an array.
func (s *Store) Pop(rawPath any) any {
	arr, norm := s.arrayAt(rawPath)
	if arr == nil || len(*arr) == 0 {
		return nil
	}
	idx := len(*arr) - 1
	v := (*arr)[idx]
	*arr = (*arr)[:idx]
	s.emitSplice(norm, SpliceRecord{Index: idx, Removed: []any{v}, Object: *arr, Type: "splice"})
	return v
}

// Shift removes and returns the first element of the array at path, or
// nil if the array is empty or the path does not hold an array.
func (s *Store) Shift(rawPath any) any {
	arr, norm := s.arrayAt(rawPath)
	if arr == nil || len(*arr) == 0 {
		return nil
	}
	v := (*arr)[0]
	*arr = (*arr)[1:]
	s.emitSplice(norm, SpliceRecord{Index: 0, Removed: []any{v}, Object: *arr, Type: "splice"})
	return v
}

// Unshift prepends items to the array at path and returns its new
// length. A path that does not hold an array is a no-op returning 0.
func (s *Store) Unshift(rawPath any, items ...any) int {
	arr, norm := s.arrayAt(rawPath)
	if arr == nil || len(items) == 0 {
		if arr != nil {
			return len(*arr)
		}
		return 0
	}
	next := make([]any, 0, len(items)+len(*arr))
	next = append(next, items...)
	next = append(next, (*arr)...)
	*arr = next
	s.emitSplice(norm, SpliceRecord{Index: 0, AddedCount: len(items), Object: *arr, Type: "splice"})
	return len(*arr)
}

// Splice removes deleteCount elements starting at start and inserts
// items in their place, returning the removed elements. A negative start
// counts back from the end of the array, clamped to 0; deleteCount is
// clamped to the remaining length. No splice notification is emitted
// when the call removes and inserts nothing.
func (s *Store) Splice(rawPath any, start, deleteCount int, items ...any) []any {
	arr, norm := s.arrayAt(rawPath)
	if arr == nil {
		return nil
	}
	n := len(*arr)

	if start < 0 {
		start = n + start
		if start < 0 {
			start = 0
		}
	}
	if start > n {
		start = n
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > n {
		deleteCount = n - start
	}

	if deleteCount == 0 && len(items) == 0 {
		return nil
	}

	removed := append([]any{}, (*arr)[start:start+deleteCount]...)

	next := make([]any, 0, n-deleteCount+len(items))
	next = append(next, (*arr)[:start]...)
	next = append(next, items...)
	next = append(next, (*arr)[start+deleteCount:]...)
	*arr = next

	s.emitSplice(norm, SpliceRecord{Index: start, AddedCount: len(items), Removed: removed, Object: *arr, Type: "splice"})
	return removed
}

// SpliceByValue removes the first element equal to value from the array
// at path, returning the index it was removed from, or -1 if the array
// held no such element (or the path does not hold an array).
func (s *Store) SpliceByValue(rawPath any, value any) int {
	arr, _ := s.arrayAt(rawPath)
	if arr == nil {
		return -1
	}
	idx := -1
	for i, v := range *arr {
		if v == value {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1
	}
	s.Splice(rawPath, idx, 1)
	return idx
}

// NotifySplices reports splices against the array at path: it sets
// path+".splices" to {indexSplices: splices} and path+".length" to the
// array's current length, both through the normal pending/flush path so
// observers see the splice payload during the flush this triggers, then
// nulls the splices record's contents so it does not linger in the data
// cache once that cycle has settled. The payload is visible only to a
// flush that runs inside this call (after Ready, without AsyncEffects);
// a flush deferred to Ready or DrainAsync sees the nulled record.
func (s *Store) NotifySplices(rawPath string, splices []SpliceRecord) {
	p := path.Normalize(rawPath)
	splicesPath := p + ".splices"
	lengthPath := p + ".length"

	changed := s.buffer.SetPending(splicesPath, map[string]any{"indexSplices": splices})

	length := 0
	if arr, ok := s.buffer.Data[p].(*[]any); ok {
		length = len(*arr)
	}
	if s.buffer.SetPending(lengthPath, float64(length)) {
		changed = true
	}

	if changed {
		s.scheduleFlush()
	}

	if rec, ok := s.buffer.Data[splicesPath].(map[string]any); ok {
		rec["indexSplices"] = nil
	}
}
