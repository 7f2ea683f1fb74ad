// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package value

import (
	"errors"
	"math"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/heap"
	"github.com/awslabs/ar-jvm-tools/analysis/jvm"
	"github.com/awslabs/ar-jvm-tools/analysis/memloc"
)

// A MutationPolicy decides which calls mutate their receiver. The receiver of a mutating call is re-pointed to the
// receiver returned by the model of the call, or loses its content when the call is not modeled.
type MutationPolicy interface {
	Mutates(sig cfa.Signature) bool
}

// ReturnTypeEqualsReceiver considers that a method mutates its receiver when it returns the type of its class, as
// the builder methods do.
//
// This misses mutating methods returning anything else (e.g. void setters) and flags methods returning a new
// object of the same class. Only objects carrying a modeled content are affected.
type ReturnTypeEqualsReceiver struct{}

// Mutates implements MutationPolicy
func (ReturnTypeEqualsReceiver) Mutates(sig cfa.Signature) bool {
	return sig.Parsed().Return == cfa.ObjectType(sig.Class)
}

// Domain implements jvm.Domain for values
type Domain struct {
	Factory *Factory

	// Models are the models of the methods executed over concrete values, keyed by signature
	Models map[string]Model

	Policy MutationPolicy
}

// NewDomain returns the value domain creating objects with the factory, with the default models and policy
func NewDomain(f *Factory) *Domain {
	return &Domain{Factory: f, Models: Models, Policy: ReturnTypeEqualsReceiver{}}
}

// Bottom returns the bottom value
func (d *Domain) Bottom() Value {
	return Value{}
}

// Constant returns the value of a constant instruction
func (d *Domain) Constant(step jvm.Step) Value {
	instr := step.Instruction()
	switch instr.Op {
	case cfa.AConstNull:
		return NullValue()
	case cfa.IConst:
		return Of(int32(instr.Int))
	case cfa.LConst:
		return OfLong(instr.Int)
	case cfa.FConst:
		return OfFloat(float32(instr.Float))
	case cfa.DConst:
		return OfDouble(instr.Float)
	case cfa.Ldc:
		switch instr.Kind {
		case cfa.Reference:
			return OfString(instr.Str)
		case cfa.Int:
			if instr.Int < math.MinInt32 || instr.Int > math.MaxInt32 {
				return OfLong(instr.Int)
			}
			return Of(int32(instr.Int))
		case cfa.Long:
			return OfLong(instr.Int)
		case cfa.Float:
			return OfFloat(float32(instr.Float))
		case cfa.Double:
			return OfDouble(instr.Float)
		}
	}
	return Top()
}

// kindType returns the type of the values of a computational kind
func kindType(k cfa.ValueKind) cfa.TypeDescriptor {
	switch k {
	case cfa.Int:
		return "I"
	case cfa.Long:
		return "J"
	case cfa.Float:
		return "F"
	case cfa.Double:
		return "D"
	}
	return ""
}

// Operation computes arithmetic over concrete operands. Integer division by zero and operands that are not
// concrete give the unknown value of the result type.
func (d *Domain) Operation(step jvm.Step, operands []Value) Value {
	instr := step.Instruction()
	switch instr.Op {
	case cfa.IInc:
		if i, ok := operands[0].AsInt(); ok {
			return Of(i + int32(instr.Int))
		}
		return UnknownOf("I")
	case cfa.ArrayLength, cfa.InstanceOf:
		return UnknownOf("I")
	case cfa.Compare:
		if v, ok := compare(operands[0], operands[1]); ok {
			return v
		}
		return UnknownOf("I")
	case cfa.Convert:
		if v, ok := convert(operands[0], instr.Kind, instr.To); ok {
			return v
		}
		return UnknownOf(kindType(instr.To))
	case cfa.Neg:
		if v, ok := negate(operands[0]); ok {
			return v
		}
		return UnknownOf(kindType(instr.Kind))
	}
	if len(operands) == 2 {
		if v, ok := arithmetic(instr.Op, operands[0], operands[1]); ok {
			return v
		}
	}
	return UnknownOf(kindType(instr.Kind))
}

func negate(v Value) (Value, bool) {
	switch v.kind {
	case Int:
		return Of(-int32(v.num)), true
	case Long:
		return OfLong(-v.num), true
	case Float:
		return OfFloat(-float32(v.fp)), true
	case Double:
		return OfDouble(-v.fp), true
	}
	return Value{}, false
}

//gocyclo:ignore
func arithmetic(op cfa.Opcode, a, b Value) (Value, bool) {
	switch {
	case a.kind == Int && b.kind == Int:
		x, y := int32(a.num), int32(b.num)
		switch op {
		case cfa.Add:
			return Of(x + y), true
		case cfa.Sub:
			return Of(x - y), true
		case cfa.Mul:
			return Of(x * y), true
		case cfa.Div:
			if y == 0 {
				return Value{}, false
			}
			return Of(x / y), true
		case cfa.Rem:
			if y == 0 {
				return Value{}, false
			}
			return Of(x % y), true
		case cfa.Shl:
			return Of(x << (y & 31)), true
		case cfa.Shr:
			return Of(x >> (y & 31)), true
		case cfa.UShr:
			return Of(int32(uint32(x) >> (y & 31))), true
		case cfa.And:
			return Of(x & y), true
		case cfa.Or:
			return Of(x | y), true
		case cfa.Xor:
			return Of(x ^ y), true
		}
	case a.kind == Long && b.kind == Int:
		x, s := a.num, b.num&63
		switch op {
		case cfa.Shl:
			return OfLong(x << s), true
		case cfa.Shr:
			return OfLong(x >> s), true
		case cfa.UShr:
			return OfLong(int64(uint64(x) >> s)), true
		}
	case a.kind == Long && b.kind == Long:
		x, y := a.num, b.num
		switch op {
		case cfa.Add:
			return OfLong(x + y), true
		case cfa.Sub:
			return OfLong(x - y), true
		case cfa.Mul:
			return OfLong(x * y), true
		case cfa.Div:
			if y == 0 {
				return Value{}, false
			}
			return OfLong(x / y), true
		case cfa.Rem:
			if y == 0 {
				return Value{}, false
			}
			return OfLong(x % y), true
		case cfa.And:
			return OfLong(x & y), true
		case cfa.Or:
			return OfLong(x | y), true
		case cfa.Xor:
			return OfLong(x ^ y), true
		}
	case a.kind == b.kind && (a.kind == Float || a.kind == Double):
		r, ok := floating(op, a.fp, b.fp)
		if !ok {
			return Value{}, false
		}
		if a.kind == Float {
			return OfFloat(float32(r)), true
		}
		return OfDouble(r), true
	}
	return Value{}, false
}

func floating(op cfa.Opcode, x, y float64) (float64, bool) {
	switch op {
	case cfa.Add:
		return x + y, true
	case cfa.Sub:
		return x - y, true
	case cfa.Mul:
		return x * y, true
	case cfa.Div:
		return x / y, true
	case cfa.Rem:
		return math.Mod(x, y), true
	}
	return 0, false
}

func compare(a, b Value) (Value, bool) {
	sign := func(less, greater bool) Value {
		switch {
		case less:
			return Of(-1)
		case greater:
			return Of(1)
		}
		return Of(0)
	}
	switch {
	case a.kind == Long && b.kind == Long:
		return sign(a.num < b.num, a.num > b.num), true
	case a.kind == b.kind && (a.kind == Float || a.kind == Double):
		// the result of comparisons with NaN depends on the variant of the instruction
		if math.IsNaN(a.fp) || math.IsNaN(b.fp) {
			return Value{}, false
		}
		return sign(a.fp < b.fp, a.fp > b.fp), true
	}
	return Value{}, false
}

// toInteger converts a floating point number to an integer of the given bounds, saturating, with NaN giving 0
func toInteger(f float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	}
	return int64(f)
}

//gocyclo:ignore
func convert(v Value, from, to cfa.ValueKind) (Value, bool) {
	if !v.IsConcrete() || from == to {
		return Value{}, false
	}
	switch from {
	case cfa.Int, cfa.Long:
		n := v.num
		if v.kind != Int && v.kind != Long {
			return Value{}, false
		}
		switch to {
		case cfa.Int:
			return Of(int32(n)), true
		case cfa.Long:
			return OfLong(n), true
		case cfa.Float:
			return OfFloat(float32(n)), true
		case cfa.Double:
			return OfDouble(float64(n)), true
		}
	case cfa.Float, cfa.Double:
		f, ok := v.AsFloat()
		if !ok {
			return Value{}, false
		}
		switch to {
		case cfa.Int:
			return Of(int32(toInteger(f, math.MinInt32, math.MaxInt32))), true
		case cfa.Long:
			return OfLong(toInteger(f, math.MinInt64, math.MaxInt64)), true
		case cfa.Float:
			return OfFloat(float32(f)), true
		case cfa.Double:
			return OfDouble(f), true
		}
	}
	return Value{}, false
}

// NewObject returns the object of the allocation site
func (d *Domain) NewObject(step jvm.Step) Value {
	return d.Factory.Object(cfa.ObjectType(step.Instruction().Class), step.At())
}

// elementType returns the type of the elements of newarray
func elementType(class string) cfa.TypeDescriptor {
	switch class {
	case "I", "J", "F", "D", "Z", "B", "C", "S":
		return cfa.TypeDescriptor(class)
	}
	return cfa.ObjectType(class)
}

func zero(t cfa.TypeDescriptor) Value {
	switch t.Kind() {
	case cfa.Int:
		return Of(0)
	case cfa.Long:
		return OfLong(0)
	case cfa.Float:
		return OfFloat(0)
	case cfa.Double:
		return OfDouble(0)
	}
	return NullValue()
}

// NewArray returns the array object of the allocation site; cells hold the default value of the element type
func (d *Domain) NewArray(step jvm.Step, _ Value) (Value, Value) {
	elem := elementType(step.Instruction().Class)
	return d.Factory.Object("["+elem, step.At()), zero(elem)
}

// FieldDefault returns the unknown value of the type of the field
func (d *Domain) FieldDefault(_ jvm.Step, _ heap.Addr[Value], field cfa.FieldRef) Value {
	return UnknownOf(cfa.TypeDescriptor(field.Descriptor))
}

// ArrayDefault returns the unknown value of the element type of the array
func (d *Domain) ArrayDefault(_ jvm.Step, arr heap.Addr[Value]) Value {
	if t := arr.Value.Type(); t.IsArray() {
		return UnknownOf(t[1:])
	}
	return Top()
}

// StaticDefault returns the unknown value of the type of the field
func (d *Domain) StaticDefault(field cfa.FieldRef) Value {
	return staticDefault(field)
}

func staticDefault(field cfa.FieldRef) Value {
	return UnknownOf(cfa.TypeDescriptor(field.Descriptor))
}

// Invoke executes the model of the method when there is one and its arguments are concrete. When the call mutates
// its receiver, every occurrence of the receiver in the frame and the static fields is re-pointed to its new value.
func (d *Domain) Invoke(step jvm.Step, state *jvm.State[Value], args []heap.Addr[Value]) Value {
	instr := step.Instruction()
	sig := instr.Method
	static := instr.IsStaticInvoke()

	var recv Value
	params := make([]Value, 0, len(args))
	for i, a := range args {
		if i == 0 && !static {
			recv = a.Value
			continue
		}
		params = append(params, a.Value)
	}

	ret := sig.Parsed().Return
	res, evaluated := d.evaluate(sig, static, recv, params)
	if !evaluated {
		res = UnknownOf(ret)
	}

	if !static && recv.kind == Object && (sig.Name == "<init>" || d.Policy.Mutates(sig)) {
		next := recv.WithoutContent()
		if evaluated && res.SameObject(recv) {
			next = res
		}
		if next != recv {
			state.Replace(recv.SameObject, next)
		}
		if res.kind == Unknown && cfa.ObjectType(sig.Class) == ret {
			res = next
		}
	}
	if ret.Kind() == cfa.Void {
		return Value{}
	}
	return res
}

// evaluate runs the model of the method. It returns false when there is none, when the inputs are not concrete and
// when the model fails.
func (d *Domain) evaluate(sig cfa.Signature, static bool, recv Value, params []Value) (Value, bool) {
	model, ok := LookupModel(d.Models, sig)
	if !ok {
		return Value{}, false
	}
	if !static && !recv.IsConcrete() {
		return Value{}, false
	}
	for _, p := range params {
		if !p.IsConcrete() {
			return Value{}, false
		}
	}
	res, err := model(recv, params)
	if err != nil {
		if !errors.Is(err, ErrNotConcrete) {
			d.Factory.ModelErrors++
		}
		return Value{}, false
	}
	d.Factory.Evaluations++
	return res, true
}

// Refs returns the empty set: values are not their own principal
func (d *Domain) Refs(Value) memloc.RefSet {
	return memloc.RefSet{}
}
