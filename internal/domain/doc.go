// Package domain models live telemetry tracks and the rules that turn raw
// upstream records into them.
//
// # Sources
//
// Four upstreams feed the aggregator, each with its own record shape:
//
//	radar      OpenSky state vectors (positional arrays, see [RadarRecord])
//	marine     AIS vessel positions from a GeoJSON feature collection
//	practice   aircraft that were already classified by the practice tool
//	generated  synthetic state arrays from the traffic generator
//
// Optional numeric fields are pointers; nil means the upstream did not report
// the value.
//
// # Classification
//
// Altitude and speed are published as coarse bands rather than raw values:
//
//	Altitude (m):  <300 surface | <3000 low | ≥3000 high
//	Speed (m/s):   <140 slow | <280 fast | ≥280 supersonic
//
// Missing input classifies as "unknown". Vessels are always "surface" and
// their speed over ground is converted from knots before classification.
// Direction is rounded to whole degrees in [0, 360).
//
// # Positions
//
// Coordinates are encoded as MGRS grid references by package geo and then
// shortened to the configured display precision. A record whose coordinates
// are missing or outside the grid's latitude range keeps its place in the
// snapshot with no position.
//
// # ID Generation
//
// Track IDs are "<source>-<16 hex>" taken from a SHA-256 of source and
// external id. See [trackID].
package domain
