// Package testutil provides a scripted stand-in for the build backends.
//
// FakeEngine implements backend.Runner and behaves like a tiny image store:
// builds record the definition they were given, inspect returns configured
// metadata, run copies configured /results files into the mounted host
// directory, and rmi deletes images. Tests script behavior per artifact name,
// which is deterministic for a given fixture.
package testutil
