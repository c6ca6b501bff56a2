// Package database provides the persistence handle shared by the whole
// process: a parsed connection target, the sqlx connection bound to it, a
// session factory producing isolated transactional sessions, and InitDB,
// which ensures one table exists per registered entity model.
//
// Entity packages register their models with Register at definition time,
// so InitDB never needs to know about them by import. Nothing in this
// package runs at import time; the application constructs exactly one
// Database at startup and injects it where storage access is needed.
package database
