// Package state stores the portal states the front end saves and resumes.
package state
