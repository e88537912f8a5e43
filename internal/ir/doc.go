// Package ir provides the value types shared by every expcontrol package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal, so it stays the foundational layer
// with no circular dependencies.
//
// Key design constraints:
//   - Times are float64 seconds on the experiment clock; +Inf marks an
//     open-ended (self-terminated) event
//   - Missing numeric values (unscored responses, callbacks with no result)
//     are NaN, never zero
//   - Records are values; logs are passed down the call chain read-only
package ir
