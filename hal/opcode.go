// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

// opcode is the single-byte command identifier at the head of each record
// in a builder's command stream. The payload layout of each opcode is fixed
// and implicit; Builder writes and Execute reads must agree exactly.
type opcode uint8

const (
	opUnknown opcode = iota
	opApplyDefaultRenderState
	opBeginEvent
	opClear
	opPostPass
	opDrawPrimitive
	opDrawIndexedPrimitive
	opEndEvent
	opLockIndexBuffer
	opUnlockIndexBuffer
	opLockTexture
	opUnlockTexture
	opUpdateTexture
	opLockVertexBuffer
	opUnlockVertexBuffer
	opResolveDepthStencilSurface
	opSelectDepthStencilSurface
	opResolveRenderTarget
	opSelectRenderTarget
	opCommitRenderSurface
	opBeginEffect
	opEndEffect
	opBeginEffectPass
	opCommitEffectPass
	opEndEffectPass
	opSetFloatParameter
	opSetMatrix3x4ArrayParameter
	opSetMatrix4Parameter
	opSetTextureParameter
	opSetVector4Parameter
	opSetCurrentViewport
	opSetScissor
	opSetNullIndices
	opSetIndices
	opSetNullVertices
	opSetVertices
	opUseVertexFormat
	opReadBackBufferPixel
	opGrabBackBufferFrame
	opUpdateOsWindowRegions
)

// String returns a human-readable name for the opcode.
func (op opcode) String() string {
	switch op {
	case opApplyDefaultRenderState:
		return "ApplyDefaultRenderState"
	case opBeginEvent:
		return "BeginEvent"
	case opClear:
		return "Clear"
	case opPostPass:
		return "PostPass"
	case opDrawPrimitive:
		return "DrawPrimitive"
	case opDrawIndexedPrimitive:
		return "DrawIndexedPrimitive"
	case opEndEvent:
		return "EndEvent"
	case opLockIndexBuffer:
		return "LockIndexBuffer"
	case opUnlockIndexBuffer:
		return "UnlockIndexBuffer"
	case opLockTexture:
		return "LockTexture"
	case opUnlockTexture:
		return "UnlockTexture"
	case opUpdateTexture:
		return "UpdateTexture"
	case opLockVertexBuffer:
		return "LockVertexBuffer"
	case opUnlockVertexBuffer:
		return "UnlockVertexBuffer"
	case opResolveDepthStencilSurface:
		return "ResolveDepthStencilSurface"
	case opSelectDepthStencilSurface:
		return "SelectDepthStencilSurface"
	case opResolveRenderTarget:
		return "ResolveRenderTarget"
	case opSelectRenderTarget:
		return "SelectRenderTarget"
	case opCommitRenderSurface:
		return "CommitRenderSurface"
	case opBeginEffect:
		return "BeginEffect"
	case opEndEffect:
		return "EndEffect"
	case opBeginEffectPass:
		return "BeginEffectPass"
	case opCommitEffectPass:
		return "CommitEffectPass"
	case opEndEffectPass:
		return "EndEffectPass"
	case opSetFloatParameter:
		return "SetFloatParameter"
	case opSetMatrix3x4ArrayParameter:
		return "SetMatrix3x4ArrayParameter"
	case opSetMatrix4Parameter:
		return "SetMatrix4Parameter"
	case opSetTextureParameter:
		return "SetTextureParameter"
	case opSetVector4Parameter:
		return "SetVector4Parameter"
	case opSetCurrentViewport:
		return "SetCurrentViewport"
	case opSetScissor:
		return "SetScissor"
	case opSetNullIndices:
		return "SetNullIndices"
	case opSetIndices:
		return "SetIndices"
	case opSetNullVertices:
		return "SetNullVertices"
	case opSetVertices:
		return "SetVertices"
	case opUseVertexFormat:
		return "UseVertexFormat"
	case opReadBackBufferPixel:
		return "ReadBackBufferPixel"
	case opGrabBackBufferFrame:
		return "GrabBackBufferFrame"
	case opUpdateOsWindowRegions:
		return "UpdateOsWindowRegions"
	default:
		return "Unknown"
	}
}
