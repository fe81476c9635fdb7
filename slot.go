package substrates

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import "github.com/spf13/cast"

// SlotType tags the declared type of a Slot's value.
type SlotType uint8

// String renders the SlotType name, following the teacher's
// enum-with-String() idiom.
func (t SlotType) String() (name string) {
	switch t {
	case SlotBool:
		return "bool"
	case SlotInt:
		return "int"
	case SlotLong:
		return "long"
	case SlotDouble:
		return "double"
	case SlotString:
		return "string"
	case SlotName:
		return "name"
	case SlotObject:
		return "object"
	}
	return "unknown"
}

const (
	// SlotBool is a boolean-valued Slot.
	SlotBool = SlotType(0)
	// SlotInt is an int-valued Slot.
	SlotInt = SlotType(1)
	// SlotLong is an int64-valued Slot.
	SlotLong = SlotType(2)
	// SlotDouble is a float64-valued Slot.
	SlotDouble = SlotType(3)
	// SlotString is a string-valued Slot.
	SlotString = SlotType(4)
	// SlotName is a Name-valued Slot.
	SlotName = SlotType(5)
	// SlotObject is an opaque, arbitrarily-typed Slot.
	SlotObject = SlotType(6)
)

// Slot is an immutable, typed attribute (Name, Type, Value), per spec §4.2.
type Slot struct {
	name  Name
	typ   SlotType
	value interface{}
}

// NewSlot constructs an immutable Slot.
func NewSlot(name Name, typ SlotType, value interface{}) Slot {
	return Slot{name: name, typ: typ, value: value}
}

// Name of the attribute.
func (s Slot) Name() Name {
	return s.name
}

// Type of the attribute's value.
func (s Slot) Type() SlotType {
	return s.typ
}

// Value returns the raw, untyped value.
func (s Slot) Value() interface{} {
	return s.value
}

// Bool coerces the Slot's value to bool, using spf13/cast so a Slot
// declared SlotObject but carrying e.g. a string "true" still resolves,
// matching the teacher's Config.Bool coercion in config.go.
func (s Slot) Bool(def bool) bool {
	v, err := cast.ToBoolE(s.value)
	if err != nil {
		return def
	}
	return v
}

// String coerces the Slot's value to string.
func (s Slot) String(def string) string {
	v, err := cast.ToStringE(s.value)
	if err != nil {
		return def
	}
	return v
}

// Int coerces the Slot's value to int, truncating toward zero. Falls
// back to a float64 coercion before giving up: a SlotDouble's value is
// commonly a decimal string like "1.5", which cast.ToIntE alone rejects
// even though it unambiguously truncates to 1.
func (s Slot) Int(def int) int {
	if v, err := cast.ToIntE(s.value); err == nil {
		return v
	}
	if f, err := cast.ToFloat64E(s.value); err == nil {
		return int(f)
	}
	return def
}

// Long coerces the Slot's value to int64, truncating toward zero. See
// Int for why a float64 coercion is tried as a fallback.
func (s Slot) Long(def int64) int64 {
	if v, err := cast.ToInt64E(s.value); err == nil {
		return v
	}
	if f, err := cast.ToFloat64E(s.value); err == nil {
		return int64(f)
	}
	return def
}

// Double coerces the Slot's value to float64.
func (s Slot) Double(def float64) float64 {
	v, err := cast.ToFloat64E(s.value)
	if err != nil {
		return def
	}
	return v
}
