// Package domain contains the core entities of stableopt.
//
// Nothing here touches the network, the file system or a logger. The types
// describe lending markets, the rates observed on them, the spread
// opportunities derived from those rates and the leveraged looping strategy
// built on top of the best opportunity.
//
// # Entities
//
//   - [Market]: a lending market identified by protocol, chain and asset
//   - [Rate]: a normalized supply/borrow observation for one market
//   - [Opportunity]: a supply market paired with a borrow market
//   - [LoopStrategy] and [Plan]: the recursive borrow strategy and its actions
//   - [Snapshot]: the output of one optimization cycle
//   - [State]: persistent agent bookkeeping for crash recovery
package domain
