/*
Package metadata decodes the structured on-chain data that carries
CIP68 asset metadata into plain values.

A datum arrives as a tree of TaggedValue nodes, either in the JSON
form the chain index serves or as raw Plutus-data CBOR. Decode
flattens such a tree into a Value: maps keyed by the decoded key
bytes, sequences, numbers and strings. A Value can also be built
from generic JSON (FromJSON) so CIP25 minting metadata is traversed
with the same lookups.

*/
package metadata
