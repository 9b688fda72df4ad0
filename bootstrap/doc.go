// Package bootstrap wires the aegis components together and manages the
// application lifecycle: logger and config initialization, storage setup,
// the correlation engine, the TCP listener, the API server, and phased
// graceful shutdown.
package bootstrap
