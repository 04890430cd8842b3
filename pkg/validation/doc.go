// Package validation checks request and service inputs against their struct tags.
//
// Tags follow github.com/go-playground/validator. Field names in errors are the
// JSON names, so a failure renders as:
//
//	{"code":"BAD_REQUEST","message":"validation failed","fields":{"name":"is required"}}
//
// In addition to the built-in rules, "notblank" rejects strings that are empty
// after trimming whitespace.
package validation
