package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// LargestExactLuaInteger is the largest integer magnitude (2^53) that a
// Lua number can represent exactly. Marshaling an Int64 or UInt64 beyond
// it fails rather than silently losing precision.
const LargestExactLuaInteger = 9007199254740992

// maxMarshalDepth bounds table recursion during marshaling, catching
// cyclic tables.
const maxMarshalDepth = 64

// NodeKind identifies the value held by a Node.
type NodeKind uint8

const (
	NodeNil NodeKind = iota
	NodeBool
	NodeInt
	NodeUInt
	NodeNumber
	NodeString
	NodeArray
	NodeTable
)

// String returns a human-readable name for the kind.
func (k NodeKind) String() string {
	switch k {
	case NodeNil:
		return "Nil"
	case NodeBool:
		return "Bool"
	case NodeInt:
		return "Int"
	case NodeUInt:
		return "UInt"
	case NodeNumber:
		return "Number"
	case NodeString:
		return "String"
	case NodeArray:
		return "Array"
	case NodeTable:
		return "Table"
	default:
		return "Unknown"
	}
}

// Node is one value in a language-neutral data tree: the exchange format
// between Lua tables and native code.
type Node struct {
	Kind NodeKind

	Bool   bool
	Int    int64
	UInt   uint64
	Number float64
	Str    string

	Array []*Node
	Table map[string]*Node
}

// NilNode returns a nil-valued node.
func NilNode() *Node { return &Node{Kind: NodeNil} }

// BoolNode returns a boolean node.
func BoolNode(v bool) *Node { return &Node{Kind: NodeBool, Bool: v} }

// IntNode returns a signed integer node.
func IntNode(v int64) *Node { return &Node{Kind: NodeInt, Int: v} }

// UIntNode returns an unsigned integer node.
func UIntNode(v uint64) *Node { return &Node{Kind: NodeUInt, UInt: v} }

// NumberNode returns a floating point node.
func NumberNode(v float64) *Node { return &Node{Kind: NodeNumber, Number: v} }

// StringNode returns a string node.
func StringNode(v string) *Node { return &Node{Kind: NodeString, Str: v} }

// ArrayNode returns an array node over the given elements.
func ArrayNode(elems ...*Node) *Node { return &Node{Kind: NodeArray, Array: elems} }

// TableNode returns an empty table node.
func TableNode() *Node { return &Node{Kind: NodeTable, Table: make(map[string]*Node)} }

// Set adds or replaces a key in a table node and returns the node for
// chaining. Panics if the node is not a table.
func (n *Node) Set(key string, value *Node) *Node {
	if n.Kind != NodeTable {
		panic(fmt.Sprintf("script: Set on %v node", n.Kind))
	}
	n.Table[key] = value
	return n
}

// toLua converts a node tree into a Lua value in l.
func toLua(l *lua.LState, n *Node) (lua.LValue, error) {
	if n == nil {
		return lua.LNil, nil
	}
	switch n.Kind {
	case NodeNil:
		return lua.LNil, nil
	case NodeBool:
		return lua.LBool(n.Bool), nil
	case NodeInt:
		if n.Int > LargestExactLuaInteger || n.Int < -LargestExactLuaInteger {
			return nil, fmt.Errorf("script: integer %d exceeds exact Lua range", n.Int)
		}
		return lua.LNumber(n.Int), nil
	case NodeUInt:
		if n.UInt > LargestExactLuaInteger {
			return nil, fmt.Errorf("script: integer %d exceeds exact Lua range", n.UInt)
		}
		return lua.LNumber(n.UInt), nil
	case NodeNumber:
		return lua.LNumber(n.Number), nil
	case NodeString:
		return lua.LString(n.Str), nil
	case NodeArray:
		t := l.CreateTable(len(n.Array), 0)
		for i, elem := range n.Array {
			v, err := toLua(l, elem)
			if err != nil {
				return nil, err
			}
			t.RawSetInt(i+1, v)
		}
		return t, nil
	case NodeTable:
		t := l.CreateTable(0, len(n.Table))
		for key, elem := range n.Table {
			v, err := toLua(l, elem)
			if err != nil {
				return nil, err
			}
			t.RawSetString(key, v)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("script: cannot marshal %v node to Lua", n.Kind)
	}
}

// fromLua converts a Lua value into a node tree. Tables with a value at
// index 1 convert as arrays, all others as string-keyed tables.
func fromLua(v lua.LValue, depth int) (*Node, error) {
	if depth > maxMarshalDepth {
		return nil, fmt.Errorf("script: table nesting exceeds %d (cycle?)", maxMarshalDepth)
	}
	switch lv := v.(type) {
	case *lua.LNilType:
		return NilNode(), nil
	case lua.LBool:
		return BoolNode(bool(lv)), nil
	case lua.LNumber:
		f := float64(lv)
		if f == float64(int64(f)) {
			i := int64(f)
			if i > LargestExactLuaInteger || i < -LargestExactLuaInteger {
				return nil, fmt.Errorf("script: integer %v exceeds exact Lua range", f)
			}
			return IntNode(i), nil
		}
		return NumberNode(f), nil
	case lua.LString:
		return StringNode(string(lv)), nil
	case *lua.LTable:
		return tableFromLua(lv, depth)
	default:
		return nil, fmt.Errorf("script: cannot marshal Lua %s", v.Type().String())
	}
}

func tableFromLua(t *lua.LTable, depth int) (*Node, error) {
	if t.RawGetInt(1) != lua.LNil {
		n := &Node{Kind: NodeArray}
		length := t.Len()
		for i := 1; i <= length; i++ {
			elem, err := fromLua(t.RawGetInt(i), depth+1)
			if err != nil {
				return nil, err
			}
			n.Array = append(n.Array, elem)
		}
		return n, nil
	}

	n := TableNode()
	var convErr error
	t.ForEach(func(key, value lua.LValue) {
		if convErr != nil {
			return
		}
		ks, ok := key.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("script: table key %s is not a string", key.Type().String())
			return
		}
		elem, err := fromLua(value, depth+1)
		if err != nil {
			convErr = err
			return
		}
		n.Table[string(ks)] = elem
	})
	if convErr != nil {
		return nil, convErr
	}
	return n, nil
}
