// Package toolcontext is a documentation cache and context budgeting
// engine for multi-agent development tools.
//
// The Service facade wires the pieces together: a TTL-based cache with
// memory and SQLite backends, a lookup path that serves stale entries
// while refreshing them in the background, a deduplicating refresh
// queue drained by a worker pool, and a budgeting assembler that fits
// the resolved documentation into each agent's token cap.
//
// Typical usage:
//
//	cfg, err := config.LoadLayered("/etc/toolcontext.yaml", ".toolcontext.yaml")
//	...
//	svc, err := toolcontext.New(cfg, nil)
//	...
//	svc.Start(ctx)
//	defer svc.Close()
//
//	docs, err := svc.RequestDocs(ctx, "reviewer", []toolcontext.DocRequest{
//		{Library: "react", Topic: "hooks", Priority: 1},
//	})
package toolcontext
