// Package observable provides a minimal observable value primitive used to
// expose call state to UI layers without coupling the core to any UI
// framework.
//
// A Value holds a single piece of state and notifies subscribers whenever the
// state is written. Subscribers are invoked synchronously on the writing
// goroutine, so listeners must be fast and must not call back into the
// component performing the write.
//
// # Usage
//
//	state := observable.New(0)
//	cancel := state.Subscribe(func(v int) {
//	    fmt.Println("state is now", v)
//	})
//	defer cancel()
//	state.Set(42)
package observable
