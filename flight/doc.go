// Package flight coordinates single-flight execution: concurrent requests
// for the same key collapse onto one in-flight computation whose outcome is
// shared by every requester.
package flight
