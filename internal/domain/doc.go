// Package domain contains the core entities shared by the relay's components.
//
// Entities here carry no behavior beyond value helpers: battery readings,
// command requests and results, frames, and the session state enum. They are
// copied between goroutines, never shared by reference.
package domain
