// Package script embeds a Lua virtual machine behind a small, typed API.
//
// A Vm wraps one gopher-lua interpreter state. All interaction with the
// interpreter stack happens through scoped helpers: FunctionInvoker for
// calling from Go into Lua, FunctionInterface for Lua calling into bound
// Go functions. Both restore the stack on exit, so the VM's stack depth is
// an invariant across calls.
//
// Only one logical caller may use a Vm at a time; every invoker holds the
// VM's call mutex for its whole lifetime. Starting a second invoker on the
// same Vm from inside an active invocation deadlocks, which makes nested
// reentry a hang rather than silent stack corruption.
//
// Vms track the files their scripts came from. When a watched file
// changes, the Vm flags itself out of date and the owning manager can
// build a replacement VM in the background and swap it in.
package script
