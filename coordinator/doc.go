/*
Package coordinator admits queued pipeline jobs onto scanner resources and drives them through
their lifecycle.

* Concepts *
Job types:
  Scan jobs need an exclusive scanner lock while running. Compile, Analysis and Features jobs need
  no lock and are admitted as soon as their upstream job, if any, is Done.

Upstream:
  Analysis reads what a Compile wrote; Features reads what an Analysis wrote. The upstream job id is
  fixed when a job is submitted, either given explicitly or found by matching the paths in the
  content model. It is never re-derived.

Stop:
  RequestStop only records intent: the job moves to Stopping and its worker context is cancelled.
  The worker decides when to exit and the job ends Done or Failed when it does. Refusals always
  carry a reason.

* Logic *
Every mutation happens under one mutex, and nothing under it blocks on I/O. Workers, power
switching and event listeners run on their own goroutines and call back in.

Scheduling pass (on submission, on every terminal transition, and every TickRate):
  Walk Queued jobs oldest first.
  Upstream Failed: fail the job with a dependency failure.
  Upstream not Done: skip it.
  Scan: try the scanner lock; if busy, skip it and every later Scan for that scanner this pass.
  Otherwise: admit (Queued -> Running) and start the registered worker, if any.

Termination (Finish):
  Done or Failed, release the lock whether or not the worker did, power the scanner down, fail
  queued dependents of a failed job transitively, then run a pass so freed scanners are reused.
*/
package coordinator
