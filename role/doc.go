// Package role defines the static role hierarchy and its permission
// predicates: pure data and pure functions, nothing else.
//
// owner > admin > teacher > readonly; unknown roles rank below all of them.
package role
