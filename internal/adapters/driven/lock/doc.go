// Package lock serialises token refreshes per integration.
//
// LocalLocker covers a single process. RedisLocker extends the guarantee
// across instances with SET NX PX and an owner-checked release.
package lock
