// Package launch orchestrates one emulated-process run end to end.
//
// The pipeline is a forward-only state machine: capability check and binary
// analysis, translator environment assembly, compatibility-layer
// environment assembly, import binding, spawn, supervision. Each launch
// owns a fresh address space, dispatch table and loader; the single-session
// guard is what makes that ownership safe without extra locking.
//
// The most important design decision here is the fallback path: when the
// external translator/compatibility binaries are absent or fail to spawn,
// the orchestrator degrades to a clearly-labeled simulated session that
// synthesizes a boot log and periodic status lines until stopped. A user
// always gets a running-looking session with informative output, never a
// hard failure, regardless of what is installed on the host.
package launch
