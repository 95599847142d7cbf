/*
Package builder is the bridge between the static configuration model (defined
in the 'config' package) and the in-memory operator graph (the 'opgraph'
package), in both directions.

Build constructs a validated *opgraph.Graph in three passes:

 1. Inputs: every declared graph input becomes a variable without a
    producer.

 2. Ops: ops are added once all of their inputs exist, so a file may use a
    variable before the op producing it is declared. Among ready ops the
    declared order wins, which keeps insertion order reproducible. An op
    whose inputs never become available is reported as missing or cyclic.

 3. Control dependencies: these may point forward or backward, so they are
    linked only after every element exists. The finished graph is validated
    and checked for cycles.

Export goes the other way and produces a model the hcl Writer can render:
inputs first, then ops in topological order.
*/
package builder
