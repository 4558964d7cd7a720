// Package airdrop builds merkle airdrop allocations and verifies claims against them.
//
// Each allocation becomes the leaf hash(address(20) || amount(12)). Leaves are
// paired in the order the allocations were supplied, parents hash the pair in
// ascending byte order, and the last node of an odd level is paired with itself.
// Reordering the input can change the root, so callers must supply allocations in
// the same order every time a campaign is rebuilt.
package airdrop
