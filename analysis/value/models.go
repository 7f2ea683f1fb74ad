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
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
)

// A Model is the semantics of a library method over concrete values. recv is the receiver (the zero Value for static
// methods) and args are the arguments in declaration order. Models of constructors and of methods that mutate their
// receiver return the receiver after the call. A model returns ErrNotConcrete when its inputs are not concrete
// enough, and another error when the call would throw.
type Model func(recv Value, args []Value) (Value, error)

// ErrNotConcrete is returned by models whose inputs are not concrete
var ErrNotConcrete = errors.New("inputs are not concrete")

// errNull is returned by models dereferencing null
var errNull = errors.New("null pointer")

// Models maps method signatures to their models
var Models = map[string]Model{}

func register(sig string, m Model) {
	if _, ok := Models[sig]; ok {
		panic(fmt.Sprintf("model of %s registered twice", sig))
	}
	Models[sig] = m
}

// LookupModel returns the model of the method in the table
func LookupModel(table map[string]Model, sig cfa.Signature) (Model, bool) {
	m, ok := table[sig.String()]
	return m, ok
}

const (
	stringClass  = "java/lang/String"
	integerClass = "java/lang/Integer"
)

// textTypes are the parameter types of the append and valueOf overloads that are modeled
var textTypes = []cfa.TypeDescriptor{"I", "J", "C", "Z", stringType, objectType}

func init() {
	registerString()
	registerInteger()
	for _, class := range []string{"java/lang/StringBuilder", "java/lang/StringBuffer"} {
		registerBuilder(class)
	}
}

// str returns the string of a String receiver or argument
func str(v Value) (string, error) {
	switch v.kind {
	case String:
		return v.str, nil
	case Null:
		return "", errNull
	}
	return "", ErrNotConcrete
}

// text returns the string conversion of a value passed as a parameter of type t, as String.valueOf does
func text(v Value, t cfa.TypeDescriptor) (string, error) {
	if v.kind == Null {
		return "null", nil
	}
	switch t {
	case "I":
		if i, ok := v.AsInt(); ok {
			return strconv.FormatInt(int64(i), 10), nil
		}
	case "J":
		if l, ok := v.AsLong(); ok {
			return strconv.FormatInt(l, 10), nil
		}
	case "C":
		if c, ok := v.AsInt(); ok {
			return string(utf16.Decode([]uint16{uint16(c)})), nil
		}
	case "Z":
		if b, ok := v.AsInt(); ok {
			return strconv.FormatBool(b != 0), nil
		}
	default:
		if s, ok := v.AsString(); ok {
			return s, nil
		}
		if s, ok := v.Content(); ok {
			return s, nil
		}
		// boxed integers are represented by their value
		if i, ok := v.AsInt(); ok && t == objectType {
			return strconv.FormatInt(int64(i), 10), nil
		}
	}
	return "", ErrNotConcrete
}

// units returns the UTF-16 code units of a Java string
func units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func fromUnits(u []uint16) string {
	return string(utf16.Decode(u))
}

func stringMethod(name string, f func(s string, args []Value) (Value, error)) {
	register(stringClass+"."+name, func(recv Value, args []Value) (Value, error) {
		s, err := str(recv)
		if err != nil {
			return Value{}, err
		}
		return f(s, args)
	})
}

//gocyclo:ignore
func registerString() {
	stringMethod("length()I", func(s string, _ []Value) (Value, error) {
		return Of(int32(len(units(s)))), nil
	})
	stringMethod("isEmpty()Z", func(s string, _ []Value) (Value, error) {
		return OfBool(s == ""), nil
	})
	stringMethod("toString()Ljava/lang/String;", func(s string, _ []Value) (Value, error) {
		return OfString(s), nil
	})
	stringMethod("concat(Ljava/lang/String;)Ljava/lang/String;", func(s string, args []Value) (Value, error) {
		t, err := str(args[0])
		if err != nil {
			return Value{}, err
		}
		return OfString(s + t), nil
	})
	stringMethod("equals(Ljava/lang/Object;)Z", func(s string, args []Value) (Value, error) {
		switch args[0].kind {
		case String:
			return OfBool(args[0].str == s), nil
		case Null, Int, Long, Float, Double:
			return OfBool(false), nil
		}
		return Value{}, ErrNotConcrete
	})
	substring := func(s string, begin, end int32) (Value, error) {
		u := units(s)
		if begin < 0 || end > int32(len(u)) || begin > end {
			return Value{}, fmt.Errorf("string index out of range: begin %d, end %d, length %d", begin, end, len(u))
		}
		return OfString(fromUnits(u[begin:end])), nil
	}
	stringMethod("substring(I)Ljava/lang/String;", func(s string, args []Value) (Value, error) {
		begin, ok := args[0].AsInt()
		if !ok {
			return Value{}, ErrNotConcrete
		}
		return substring(s, begin, int32(len(units(s))))
	})
	stringMethod("substring(II)Ljava/lang/String;", func(s string, args []Value) (Value, error) {
		begin, ok1 := args[0].AsInt()
		end, ok2 := args[1].AsInt()
		if !ok1 || !ok2 {
			return Value{}, ErrNotConcrete
		}
		return substring(s, begin, end)
	})
	stringMethod("charAt(I)C", func(s string, args []Value) (Value, error) {
		i, ok := args[0].AsInt()
		if !ok {
			return Value{}, ErrNotConcrete
		}
		u := units(s)
		if i < 0 || i >= int32(len(u)) {
			return Value{}, fmt.Errorf("string index out of range: %d", i)
		}
		return Of(int32(u[i])), nil
	})
	stringMethod("toUpperCase()Ljava/lang/String;", func(s string, _ []Value) (Value, error) {
		return OfString(strings.ToUpper(s)), nil
	})
	stringMethod("toLowerCase()Ljava/lang/String;", func(s string, _ []Value) (Value, error) {
		return OfString(strings.ToLower(s)), nil
	})
	stringMethod("trim()Ljava/lang/String;", func(s string, _ []Value) (Value, error) {
		return OfString(strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })), nil
	})
	for _, t := range textTypes {
		t := t
		register(fmt.Sprintf("%s.valueOf(%s)%s", stringClass, t, stringType), func(_ Value, args []Value) (Value, error) {
			s, err := text(args[0], t)
			if err != nil {
				return Value{}, err
			}
			return OfString(s), nil
		})
	}
}

func parseInt(args []Value) (Value, error) {
	s, err := str(args[0])
	if err != nil {
		return Value{}, err
	}
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return Value{}, fmt.Errorf("number format: %w", err)
	}
	return Of(int32(i)), nil
}

// registerInteger registers the models of java/lang/Integer. Boxed integers are represented by their int value.
func registerInteger() {
	integer := cfa.ObjectType(integerClass)
	register(integerClass+".parseInt(Ljava/lang/String;)I", func(_ Value, args []Value) (Value, error) {
		return parseInt(args)
	})
	register(integerClass+".valueOf(Ljava/lang/String;)"+string(integer), func(_ Value, args []Value) (Value, error) {
		return parseInt(args)
	})
	register(integerClass+".valueOf(I)"+string(integer), func(_ Value, args []Value) (Value, error) {
		if _, ok := args[0].AsInt(); !ok {
			return Value{}, ErrNotConcrete
		}
		return args[0], nil
	})
	register(integerClass+".intValue()I", func(recv Value, _ []Value) (Value, error) {
		if recv.kind == Null {
			return Value{}, errNull
		}
		if _, ok := recv.AsInt(); !ok {
			return Value{}, ErrNotConcrete
		}
		return recv, nil
	})
	register(integerClass+".toString(I)Ljava/lang/String;", func(_ Value, args []Value) (Value, error) {
		s, err := text(args[0], "I")
		if err != nil {
			return Value{}, err
		}
		return OfString(s), nil
	})
}

// content returns the content of a builder receiver
func content(recv Value) (string, error) {
	if recv.kind == Null {
		return "", errNull
	}
	if s, ok := recv.Content(); ok {
		return s, nil
	}
	return "", ErrNotConcrete
}

func registerBuilder(class string) {
	t := cfa.ObjectType(class)
	prefix := class + "."
	register(prefix+"<init>()V", func(recv Value, _ []Value) (Value, error) {
		if recv.kind != Object {
			return Value{}, ErrNotConcrete
		}
		return recv.WithContent(""), nil
	})
	register(prefix+"<init>(Ljava/lang/String;)V", func(recv Value, args []Value) (Value, error) {
		if recv.kind != Object {
			return Value{}, ErrNotConcrete
		}
		s, err := str(args[0])
		if err != nil {
			return Value{}, err
		}
		return recv.WithContent(s), nil
	})
	for _, p := range textTypes {
		p := p
		register(fmt.Sprintf("%sappend(%s)%s", prefix, p, t), func(recv Value, args []Value) (Value, error) {
			s, err := content(recv)
			if err != nil {
				return Value{}, err
			}
			a, err := text(args[0], p)
			if err != nil {
				return Value{}, err
			}
			return recv.WithContent(s + a), nil
		})
	}
	register(prefix+"toString()Ljava/lang/String;", func(recv Value, _ []Value) (Value, error) {
		s, err := content(recv)
		if err != nil {
			return Value{}, err
		}
		return OfString(s), nil
	})
	register(prefix+"length()I", func(recv Value, _ []Value) (Value, error) {
		s, err := content(recv)
		if err != nil {
			return Value{}, err
		}
		return Of(int32(len(units(s)))), nil
	})
}
