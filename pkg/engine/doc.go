// Package engine runs the concurrent enrichment of a record store.
//
// A Controller owns one session at a time. Start spawns a fixed pool of
// workers that share an atomic cursor over the store. Each worker claims the
// next index, skips records that already carry an owner, calls the lookup
// service, merges the result by record id and then sleeps a random delay to
// keep the request rate against the upstream service bounded.
//
// Session states:
//
//	Idle --Start--> Running --Pause--> Paused --Resume--> Running
//	Running|Paused --Stop--> Completed
//	Running --(cursor exhausted)--> Completed
//	any --Reset/Load--> Idle
//
// Launch performs the same transition as Start but returns as soon as the
// session is Running, handing back a channel closed when the run ends.
//
// Pause only throttles claims: a lookup already in flight finishes and its
// result is merged. Stop is cooperative in the same way; a worker observes
// it at the next claim and never starts another lookup.
//
// Example usage:
//
//	st := store.New()
//	_ = st.Load(records)
//	ctrl, err := engine.New(st, lookupClient, engine.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	done, err := ctrl.Launch(ctx) // returns once the session is Running
//	if err != nil {
//		return err
//	}
//	_ = ctrl.Pause()
//	_ = ctrl.Resume()
//	fmt.Println(ctrl.Progress().Percent)
//	<-done
package engine
