// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

// RenderStats accumulates per-frame rendering counters and tracks the
// per-session maximum of each. Execute adds into the current-frame fields;
// the application calls BeginFrame once per frame to fold the previous
// frame into the maxima and restart the counters.
type RenderStats struct {
	Draws        uint32
	Triangles    uint32
	EffectBegins uint32

	MaxDraws        uint32
	MaxTriangles    uint32
	MaxEffectBegins uint32
}

// Clear zeroes all counters including the maxima.
func (s *RenderStats) Clear() {
	*s = RenderStats{}
}

// BeginFrame folds the previous frame's counters into the maxima and
// resets the per-frame fields.
func (s *RenderStats) BeginFrame() {
	s.MaxDraws = max(s.MaxDraws, s.Draws)
	s.MaxTriangles = max(s.MaxTriangles, s.Triangles)
	s.MaxEffectBegins = max(s.MaxEffectBegins, s.EffectBegins)
	s.Draws = 0
	s.Triangles = 0
	s.EffectBegins = 0
}

// Add accumulates another stats block into the per-frame counters.
func (s *RenderStats) Add(o RenderStats) {
	s.Draws += o.Draws
	s.Triangles += o.Triangles
	s.EffectBegins += o.EffectBegins
}
