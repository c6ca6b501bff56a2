// Package users defines the user table of the state service: the portal
// visitors who save and resume states. The table is registered with the
// database package when this package is linked in, and created by InitDB.
package users
