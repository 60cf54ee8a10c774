// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

// ParameterType identifies the value kind of an effect parameter. Setting a
// parameter with a mismatched type is silently ignored at record time.
type ParameterType uint8

const (
	ParameterUnknown ParameterType = iota
	ParameterFloat
	ParameterVector4
	ParameterMatrix4
	ParameterMatrix3x4Array
	ParameterTexture
)

// String returns a human-readable name for the parameter type.
func (t ParameterType) String() string {
	switch t {
	case ParameterFloat:
		return "Float"
	case ParameterVector4:
		return "Vector4"
	case ParameterMatrix4:
		return "Matrix4"
	case ParameterMatrix3x4Array:
		return "Matrix3x4Array"
	case ParameterTexture:
		return "Texture"
	default:
		return "Unknown"
	}
}

// TechniqueEntry describes one renderable technique of an Effect.
type TechniqueEntry struct {
	// Handle is the backend's identifier for the technique.
	Handle uint32
	// PassCount is the number of passes the technique renders in.
	PassCount uint8
}

// ParameterEntry describes one settable parameter of an Effect.
type ParameterEntry struct {
	// Handle is the backend's identifier for the parameter.
	Handle uint32
	// Type constrains which Set*Parameter records apply.
	Type ParameterType
}

// Effect is a compiled shader effect: a set of named techniques, each a
// sequence of passes, plus a table of typed parameters addressed by
// semantic name.
type Effect struct {
	GraphicsObject

	techniques map[string]TechniqueEntry
	parameters map[string]ParameterEntry
}

// NewEffect creates an empty effect description.
func NewEffect(name string) *Effect {
	return &Effect{
		GraphicsObject: NewGraphicsObject(name),
		techniques:     make(map[string]TechniqueEntry),
		parameters:     make(map[string]ParameterEntry),
	}
}

// AddTechnique registers a technique under its name. passCount must be at
// least 1 for the technique to be renderable.
func (e *Effect) AddTechnique(name string, handle uint32, passCount uint8) {
	e.techniques[name] = TechniqueEntry{Handle: handle, PassCount: passCount}
}

// AddParameter registers a typed parameter under its semantic name.
func (e *Effect) AddParameter(semantic string, handle uint32, typ ParameterType) {
	e.parameters[semantic] = ParameterEntry{Handle: handle, Type: typ}
}

// Technique looks up a technique by name.
func (e *Effect) Technique(name string) (TechniqueEntry, bool) {
	t, ok := e.techniques[name]
	return t, ok
}

// Parameter looks up a parameter by semantic name.
func (e *Effect) Parameter(semantic string) (ParameterEntry, bool) {
	p, ok := e.parameters[semantic]
	return p, ok
}

// EffectPass is the handle returned by Builder.BeginEffect. A zero-count
// pass is invalid and all operations on it record nothing.
type EffectPass struct {
	technique uint32
	index     uint8
	count     uint8
}

// IsValid returns true if the pass refers to a renderable technique.
func (p EffectPass) IsValid() bool { return p.count > 0 }

// PassCount returns the number of passes in the technique.
func (p EffectPass) PassCount() uint8 { return p.count }

// PassIndex returns the zero-based index of the current pass.
func (p EffectPass) PassIndex() uint8 { return p.index }

// Next returns the pass handle advanced to the following pass, or an
// invalid pass when the technique is exhausted.
func (p EffectPass) Next() EffectPass {
	if p.index+1 >= p.count {
		return EffectPass{}
	}
	return EffectPass{technique: p.technique, index: p.index + 1, count: p.count}
}
