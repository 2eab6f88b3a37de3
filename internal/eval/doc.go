// Package eval parses and evaluates set-algebra expressions.
//
// The Lexer splits text into tokens; the Evaluator runs an
// operator-precedence parse over them, registering every literal and
// intermediate result in a store.Scope. Set and tuple literals are parsed
// as frames on the same stacks as the operators, so nesting depth is
// bounded only by memory. Parenthesized groups use a nested parser that
// shares the lexer.
//
// A failed evaluation rolls its scope back to where it started, leaving
// no scratch objects behind.
//
// Powerset and product are checked against Limits before any object is
// created.
package eval
