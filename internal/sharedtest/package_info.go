// Package sharedtest provides helper code and test data that may be used by tests in all ld-sync
// components.
//
// Non-test code should never import this package. To avoid circular references, code in this package
// cannot reference the store package or any data source package.
package sharedtest
