// Package kestrel is a slice of a cross-platform game engine runtime: a
// deferred GPU command stream with a render-thread replay model, and an
// embedded Lua scripting runtime with native bindings and hot-load VM
// swapping.
//
// # Overview
//
// The engine is split into focused subpackages:
//
//   - hal: the GPU hardware abstraction layer. Graphics resources share a
//     three-state lifecycle (Destroyed, Created, Reset) driven on the render
//     goroutine, and all GPU work is recorded into a Builder command stream
//     that is replayed exactly once against a platform Backend.
//   - script: an embedded Lua virtual machine (yuin/gopher-lua) with
//     two-directional call marshaling (FunctionInvoker for native-to-Lua,
//     FunctionInterface for Lua-to-native), reference-counted VM objects,
//     and hot-load dependency tracking.
//   - game: orchestration of asynchronous VM (re)creation and hot-load
//     swapping on top of script.Vm.
//   - viewport: an editor scene renderer composing render and pick passes
//     over the hal command stream.
//   - framegrab: helpers for converting GPU frame readbacks into images.
//
// # Logging
//
// By default kestrel produces no log output. Call SetLogger to enable
// logging across all subpackages.
package kestrel
