// Package test contains the tests every backend has to pass.
//
// A backend test fills a Suite with callbacks to create a config, open the
// backend and read back a stored object, then calls RunTests:
//
//	func TestBackend(t *testing.T) {
//		suite := &test.Suite[Config]{NewConfig: ..., Open: ..., Load: ...}
//		suite.RunTests(t)
//	}
package test
