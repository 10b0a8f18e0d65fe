// Package ruletree resolves which rule definition governs a directory of
// a project and dispatches calls against it.
//
// A rule-file is, in the original design, a script evaluated once per
// directory to populate a name table of rule callables; here a rule-file
// is a compiled Go source file that registers its rules with Register
// from an init() function, keyed by the directory it lives under. That
// keeps the "evaluated once per process, side effects limited to
// populating a namespace" contract of the original without embedding a
// second language runtime: registration happens exactly once, at program
// startup.
//
// node(d) then walks from the project root down to d, merging each
// directory's registered rules with its parent's (a child may override a
// rule but not contradict its parent's path_arg or cli binding), and
// Context.Dispatch implements the node-map recursion-deferral trick: a
// rule that calls itself with the same arguments is resolved against its
// own parent node rather than recursing into itself.
package ruletree
